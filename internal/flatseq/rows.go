package flatseq

import "strings"

// CandidateRow is a detected row start plus its scan window [Start+1, End).
// Windows never overlap: End of row i is at most Start of row i+1.
type CandidateRow struct {
	Start int
	End   int
}

// RetainedValue is one value kept by the extractor, with its position in the
// flat sequence. Positions stay in original order; the field mapper leans on
// them for its lookback checks.
type RetainedValue struct {
	Pos   int
	Value string
}

// scanState is the per-row extraction state: which primary signals have been
// seen so far. The end-marker and intrusion rules only fire once at least one
// of these is set, otherwise a marker early in the window would truncate the
// row before it produced anything.
type scanState struct {
	foundName        bool
	foundDescription bool
	foundWebsite     bool
	foundCreatedTime bool
}

func (s scanState) any() bool {
	return s.foundName || s.foundDescription || s.foundWebsite || s.foundCreatedTime
}

// note updates the state for an accepted value, mirroring the shape
// precedence of valueShape: a timestamp is also a short label by length, so
// the timestamp test must come first.
func (s *scanState) note(v string) {
	switch {
	case isLongText(v):
		s.foundDescription = true
	case isExternalURL(v):
		s.foundWebsite = true
	case strings.HasPrefix(v, "www."):
		s.foundWebsite = true
	default:
		if _, ok := parseTimestamp(v); ok {
			s.foundCreatedTime = true
		} else if isShortLabel(v) {
			s.foundName = true
		}
	}
}

// ExtractedRecord is the extractor's output for one row window.
type ExtractedRecord struct {
	ID       string
	Row      CandidateRow
	Retained []RetainedValue
	State    struct {
		HasName        bool
		HasDescription bool
		HasWebsite     bool
		HasTimestamp   bool
	}
}

// DetectRows finds candidate row starts: a rec identifier long enough to be a
// row id, with a "real record" signal (emoji tag, external URL, or long text)
// within the next few items. Rec ids without such a signal are mere
// cross-references inside a row and are skipped here.
func DetectRows(items []any) []CandidateRow {
	var starts []int

	for i, item := range items {
		if !isRecordID(item) {
			continue
		}
		if hasMainRowSignal(items, i) {
			starts = append(starts, i)
		}
	}

	rows := make([]CandidateRow, len(starts))
	for idx, start := range starts {
		end := start + lastRowWindowCap
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		if end > len(items) {
			end = len(items)
		}
		rows[idx] = CandidateRow{Start: start, End: end}
	}
	return rows
}

func hasMainRowSignal(items []any, pos int) bool {
	for j := pos + 1; j < len(items) && j <= pos+boundaryLookahead; j++ {
		s, ok := items[j].(string)
		if !ok || identifierTag(s) != "" {
			continue
		}
		if isEmojiTag(s) || isExternalURL(s) || isLongText(s) {
			return true
		}
	}
	return false
}

// ExtractRecord performs the bounded second scan over one row window,
// skipping metadata and identifiers, honoring end markers, and stopping when
// a new record intrudes on the window.
//
// Lookahead windows deliberately run over the full sequence, not just the row
// window: the signals that terminate a row usually belong to the next one.
func ExtractRecord(items []any, row CandidateRow) ExtractedRecord {
	rec := ExtractedRecord{Row: row}
	if id, ok := items[row.Start].(string); ok {
		rec.ID = id
	}

	var state scanState
	var retained []RetainedValue

scan:
	for i := row.Start + 1; i < row.End && i < len(items); i++ {
		item := items[i]

		if isEndMarker(item) {
			if state.any() {
				if signalAfter(items, i, endMarkerLookahead, newRecordSignal) {
					break scan
				}
				if state.foundCreatedTime {
					break scan
				}
			}
			continue
		}

		if isMetadataInt(item) || isReferenceMarker(item) {
			continue
		}

		if isRecordID(item) {
			if state.any() && signalAfter(items, i, intrusionLookahead, intrusionSignal) {
				break scan
			}
			continue
		}

		s, ok := item.(string)
		if !ok {
			continue
		}
		if identifierTag(s) != "" {
			// inert cross-reference, any length
			continue
		}
		if isFileMetadata(s) || runeLen(s) < 3 || strings.TrimSpace(s) == "" {
			continue
		}

		// A value sitting right behind an end marker and shaped like the
		// head of a record belongs to the next row, not this one.
		if endMarkerBehind(items, i, row.Start) && newRecordSignal(s) {
			continue
		}

		retained = append(retained, RetainedValue{Pos: i, Value: s})
		state.note(s)
	}

	rec.Retained = applyCutoff(items, row, retained)
	rec.State.HasName = state.foundName
	rec.State.HasDescription = state.foundDescription
	rec.State.HasWebsite = state.foundWebsite
	rec.State.HasTimestamp = state.foundCreatedTime
	return rec
}

// signalAfter scans up to span items after pos for a string matching the
// given signal test. Metadata and marker items occupy slots but never match.
func signalAfter(items []any, pos, span int, signal func(string) bool) bool {
	for j := pos + 1; j < len(items) && j <= pos+span; j++ {
		s, ok := items[j].(string)
		if !ok {
			continue
		}
		if signal(s) {
			return true
		}
	}
	return false
}

// endMarkerBehind reports whether an end marker sits in the few positions
// before pos, bounded by the row start.
func endMarkerBehind(items []any, pos, rowStart int) bool {
	low := pos - valueLookback
	if low < rowStart {
		low = rowStart
	}
	for k := low; k < pos; k++ {
		if isEndMarker(items[k]) {
			return true
		}
	}
	return false
}

// applyCutoff is the post-scan correction pass: find the last end marker in
// the window that already has retained values before it and a new-record
// signal shortly after it, and drop every value past that point. The forward
// scan's local lookahead can miss a later, more obvious boundary; this
// backward pass catches it.
func applyCutoff(items []any, row CandidateRow, retained []RetainedValue) []RetainedValue {
	if len(retained) == 0 {
		return retained
	}

	var markers []int
	for k := row.Start; k < row.End && k < len(items); k++ {
		if isEndMarker(items[k]) {
			markers = append(markers, k)
		}
	}

	cutoff := row.End
	for m := len(markers) - 1; m >= 0; m-- {
		endPos := markers[m]

		hasDataBefore := false
		for _, rv := range retained {
			if rv.Pos < endPos {
				hasDataBefore = true
				break
			}
		}
		if !hasDataBefore {
			continue
		}

		if signalAfter(items, endPos, cutoffLookahead, newRecordSignal) {
			cutoff = endPos
			break
		}
	}

	if cutoff >= row.End {
		return retained
	}
	kept := retained[:0]
	for _, rv := range retained {
		if rv.Pos <= cutoff {
			kept = append(kept, rv)
		}
	}
	return kept
}
