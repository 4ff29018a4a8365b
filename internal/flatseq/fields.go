package flatseq

import "strings"

// KeywordTables holds the word lists the field mapper matches against. They
// are data, not code: a deployment pointed at a different incubator's table
// overrides them from config without touching the heuristics.
type KeywordTables struct {
	// ProgramKeywords mark a short value as a program name.
	ProgramKeywords []string
	// FunctionWords is the light English-likelihood filter for descriptions.
	FunctionWords []string
	// NameStopwords disqualify a short label from being a company name.
	NameStopwords []string
	// SentenceStarters disqualify labels whose leading words read like prose.
	SentenceStarters []string
}

// DefaultTables returns the keyword tables tuned against the observed
// startup-listing exports.
func DefaultTables() KeywordTables {
	return KeywordTables{
		ProgramKeywords: []string{
			"Incubateur", "CDL", "Program", "Station", "Online",
			"TotalEnergies", "Akwa",
		},
		FunctionWords: []string{
			"the", "is", "are", "and", "for", "with", "that", "this",
		},
		NameStopwords: []string{
			"logo", "image", "copy", "jpg", "png", "svg",
		},
		SentenceStarters: []string{
			"the", "is", "are", "and", "for", "with", "that", "this",
			"we", "our",
		},
	}
}

// MapFields assigns the extracted values of one row to named fields by
// ordered first-match heuristics, then applies the website consistency check,
// which may retract the assignment again.
// Defaulted fills each nil table from DefaultTables independently, so a
// partial override never silently disables the other heuristics.
func (t KeywordTables) Defaulted() KeywordTables {
	d := DefaultTables()
	if t.ProgramKeywords == nil {
		t.ProgramKeywords = d.ProgramKeywords
	}
	if t.FunctionWords == nil {
		t.FunctionWords = d.FunctionWords
	}
	if t.NameStopwords == nil {
		t.NameStopwords = d.NameStopwords
	}
	if t.SentenceStarters == nil {
		t.SentenceStarters = d.SentenceStarters
	}
	return t
}

func MapFields(items []any, rec ExtractedRecord, tables KeywordTables) *Record {
	r := &Record{ID: rec.ID}
	values := rec.Retained

	r.MarketTags = nthTagList(values, 1)
	r.Website = pickWebsite(items, rec.Row, values)
	r.LogoURL = pickLogoURL(values)
	r.Program = pickProgram(values, tables.ProgramKeywords)
	r.Batch = pickBatch(values)
	r.ProductTags = nthTagList(values, 2)
	r.Description = pickDescription(values, tables.FunctionWords)
	r.CompanyName = pickCompanyName(values, r, tables)
	r.CreatedTime = pickCreatedTime(values)

	retractWebsite(items, rec, r)

	for _, rv := range values {
		r.AllValues = append(r.AllValues, rv.Value)
	}
	r.AllValues = CapAuditValues(r.AllValues)

	return r
}

// nthTagList returns the n-th emoji-led, semicolon-separated value. The first
// match is the market tag list, the second the product tag list.
func nthTagList(values []RetainedValue, n int) string {
	seen := 0
	for _, rv := range values {
		if isTagList(rv.Value) {
			seen++
			if seen == n {
				return rv.Value
			}
		}
	}
	return ""
}

// pickWebsite picks the first external URL or www host, rejecting candidates
// that sit behind an end marker which is itself followed by a new-record
// signal: those belong to the next row.
func pickWebsite(items []any, row CandidateRow, values []RetainedValue) string {
	for _, rv := range values {
		v := rv.Value
		switch {
		case isExternalURL(v):
			if crossesEndMarker(items, row, rv.Pos) {
				continue
			}
			return v
		case strings.HasPrefix(v, "www.") && !isAssetURL(v):
			if crossesEndMarker(items, row, rv.Pos) {
				continue
			}
			return "https://" + v
		}
	}
	return ""
}

// crossesEndMarker scans backward from pos for an end marker followed within
// a short span by a new-record signal.
func crossesEndMarker(items []any, row CandidateRow, pos int) bool {
	low := pos - websiteLookback
	if low < row.Start {
		low = row.Start
	}
	for k := pos - 1; k >= low; k-- {
		if !isEndMarker(items[k]) {
			continue
		}
		if signalAfter(items, k, websiteSignalSpan, newRecordSignal) {
			return true
		}
	}
	return false
}

// pickLogoURL picks the first URL on the exporter's own domain carrying the
// direct-upload attachment marker.
func pickLogoURL(values []RetainedValue) string {
	for _, rv := range values {
		if strings.Contains(rv.Value, "airtable.com") &&
			strings.Contains(rv.Value, "directUploadAttachment") {
			return rv.Value
		}
	}
	return ""
}

func pickProgram(values []RetainedValue, keywords []string) string {
	for _, rv := range values {
		if strings.Contains(rv.Value, "[") {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(rv.Value, kw) {
				return rv.Value
			}
		}
	}
	return ""
}

func pickBatch(values []RetainedValue) string {
	for _, rv := range values {
		v := rv.Value
		if (strings.Contains(v, "[") && strings.Contains(v, "]")) ||
			strings.Contains(v, "Batch") {
			return v
		}
	}
	return ""
}

func pickDescription(values []RetainedValue, functionWords []string) string {
	for _, rv := range values {
		v := rv.Value
		if runeLen(v) <= descriptionMin || strings.HasPrefix(v, "http") {
			continue
		}
		lower := strings.ToLower(v)
		for _, w := range functionWords {
			if strings.Contains(lower, w) {
				return v
			}
		}
	}
	return ""
}

// pickCompanyName searches just past the chosen description (names trail
// their descriptions in the observed exports) for the first short label that
// is not a date, URL, filename, or sentence fragment, and is not already
// claimed by another field.
func pickCompanyName(values []RetainedValue, r *Record, tables KeywordTables) string {
	searchStart := 0
	if r.Description != "" {
		for idx, rv := range values {
			if rv.Value == r.Description {
				searchStart = idx + 1
				break
			}
		}
	}

	used := r.fieldValues()

	for _, rv := range values[searchStart:] {
		v := rv.Value
		n := runeLen(v)
		if n <= shortLabelMin || n >= shortLabelMax {
			continue
		}
		if isISOTimestampShape(v) {
			continue
		}
		if strings.HasPrefix(v, "http") || strings.HasPrefix(v, "www.") {
			continue
		}
		if hasFileExtension(v) {
			continue
		}
		lower := strings.ToLower(v)
		if containsAny(lower, tables.NameStopwords) {
			continue
		}
		if emojiLead(v, emojiNameWindow) {
			continue
		}
		if startsLikeSentence(v, tables.SentenceStarters) {
			continue
		}
		if valueAlreadyUsed(v, used) {
			continue
		}
		return v
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func startsLikeSentence(v string, starters []string) bool {
	words := strings.Fields(v)
	if len(words) > 3 {
		words = words[:3]
	}
	for _, w := range words {
		lw := strings.ToLower(w)
		for _, s := range starters {
			if lw == s {
				return true
			}
		}
	}
	return false
}

func valueAlreadyUsed(v string, used []string) bool {
	for _, u := range used {
		if _, val, ok := strings.Cut(u, "="); ok && val == v {
			return true
		}
	}
	return false
}

func pickCreatedTime(values []RetainedValue) string {
	for _, rv := range values {
		if _, ok := parseTimestamp(rv.Value); ok {
			return rv.Value
		}
	}
	return ""
}

// retractWebsite is the post-hoc consistency fix-up: a website that sits
// behind an end marker, or whose domain shares no keyword with the company
// name and sits suspiciously deep in the window, probably leaked in from a
// neighboring record. Retraction removes the field entirely.
func retractWebsite(items []any, rec ExtractedRecord, r *Record) {
	if r.Website == "" {
		return
	}

	websitePos := -1
	wanted := strings.ToLower(r.Website)
	bare := stripURLPrefix(wanted)
	for _, rv := range rec.Retained {
		lower := strings.ToLower(rv.Value)
		if lower == wanted || stripURLPrefix(lower) == bare {
			websitePos = rv.Pos
			break
		}
	}
	if websitePos < 0 {
		return
	}

	afterMarker := false
	low := websitePos - websiteLookback
	if low < rec.Row.Start {
		low = rec.Row.Start
	}
	for k := websitePos - 1; k >= low; k-- {
		if isEndMarker(items[k]) {
			afterMarker = true
			break
		}
	}

	if afterMarker {
		r.Website = ""
		return
	}

	if r.CompanyName == "" {
		return
	}
	domain := stripURLPrefix(strings.ToLower(r.Website))
	if i := strings.Index(domain, "/"); i >= 0 {
		domain = domain[:i]
	}
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(r.CompanyName)) {
		if runeLen(w) > 3 {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return
	}
	for _, kw := range keywords {
		if strings.Contains(domain, kw) {
			return
		}
	}
	if websitePos > rec.Row.Start+websiteMaxOffset {
		r.Website = ""
	}
}

func stripURLPrefix(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimPrefix(s, "www.")
}
