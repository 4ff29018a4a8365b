// Package flatseq reconstructs structured records from Airtable's flattened
// shared-view export.
//
// When readSharedViewData is called without the nested response format, the
// exporter serializes the whole view as one flat sequence of scalars and
// small marker lists with no row or column boundaries. This package derives
// those boundaries back out of the stream by position and value shape alone:
// - classify each primitive (identifier, metadata, marker, value)
// - sniff a best-effort column directory
// - detect row starts and scan windows
// - extract retained values per row
// - map values to named fields by ordered heuristics
// - deduplicate by derived identity and link orphaned batch records
//
// The whole pipeline is pure computation over an in-memory slice. Every
// anomaly degrades to "field or row not populated"; nothing here returns an
// error.
package flatseq

import (
	"strings"
	"time"
	"unicode"
)

// Scan window sizes and shape thresholds. These are empirically tuned against
// observed export payloads, not derived; changing one shifts which values land
// in which row.
const (
	// metadataIntCeiling: integers below this are internal exporter codes.
	metadataIntCeiling = 200

	// minRecordIDLen: rec identifiers shorter than this are inert references.
	minRecordIDLen = 11

	boundaryLookahead  = 5  // items checked after a rec id for the main-row test
	endMarkerLookahead = 5  // items checked after [0,"00"] for a new-record signal
	intrusionLookahead = 3  // items checked after a mid-window rec id
	valueLookback      = 3  // positions checked before accepting a value
	cutoffLookahead    = 10 // items checked after an end marker in the cutoff pass
	columnLookahead    = 10 // items checked after a fld id for a type tag
	websiteLookback    = 15 // backward window for the website end-marker check
	websiteSignalSpan  = 6  // forward window for the signal after that marker
	websiteMaxOffset   = 20 // positions past row start before a mismatched website is suspect
	lastRowWindowCap   = 100

	longTextMin     = 50
	descriptionMin  = 80
	shortLabelMin   = 3 // exclusive
	shortLabelMax   = 60
	emojiLeadWindow = 5
	emojiNameWindow = 3

	maxAuditValues  = 30
	identityDescLen = 50
	identityHashLen = 100
)

// identifierTags are the short alphabetic prefixes Airtable stamps on its
// internal identifiers.
var identifierTags = []string{"rec", "fld", "tbl", "viw", "sel", "usr", "att"}

// ItemClass is the coarse classification of one flat item.
type ItemClass int

const (
	ClassMetadata ItemClass = iota
	ClassIdentifier
	ClassMarker
	ClassValue
)

// MarkerShape distinguishes the two fixed-shape marker lists.
type MarkerShape int

const (
	MarkerNone MarkerShape = iota
	MarkerReference
	MarkerEnd
)

// ValueShape is the semantic shape of a value string.
type ValueShape int

const (
	ShapeNone ValueShape = iota
	ShapeURL
	ShapeTagList
	ShapeLongText
	ShapeShortLabel
	ShapeTimestamp
	ShapeFileMeta
	ShapeOther
)

// Class is the result of classifying a single flat item.
type Class struct {
	Class  ItemClass
	Tag    string // identifier prefix when Class == ClassIdentifier
	Marker MarkerShape
	Shape  ValueShape
}

// Classify assigns a coarse class and shape to one flat item. It is a pure
// function of the item alone; the positional variants used by the scanners
// live on their call sites.
func Classify(item any) Class {
	switch v := item.(type) {
	case nil:
		return Class{Class: ClassMetadata}
	case string:
		if tag := identifierTag(v); tag != "" {
			return Class{Class: ClassIdentifier, Tag: tag}
		}
		if runeLen(v) < 3 {
			return Class{Class: ClassMetadata}
		}
		return Class{Class: ClassValue, Shape: valueShape(v)}
	case bool:
		// bools ride the metadata int rule: they are flags, not cell values
		return Class{Class: ClassMetadata}
	case []any:
		if isReferenceMarker(v) {
			return Class{Class: ClassMarker, Marker: MarkerReference}
		}
		if isEndMarkerList(v) {
			return Class{Class: ClassMarker, Marker: MarkerEnd}
		}
		return Class{Class: ClassMetadata}
	default:
		if n, ok := asInt(item); ok {
			if n < metadataIntCeiling {
				return Class{Class: ClassMetadata}
			}
			return Class{Class: ClassValue, Shape: ShapeOther}
		}
		return Class{Class: ClassMetadata}
	}
}

func valueShape(s string) ValueShape {
	switch {
	case isExternalURL(s) || strings.HasPrefix(s, "www."):
		return ShapeURL
	case isTagList(s):
		return ShapeTagList
	case isISOTimestampShape(s):
		return ShapeTimestamp
	case isFileMetadata(s):
		return ShapeFileMeta
	case isLongText(s):
		return ShapeLongText
	case isShortLabel(s):
		return ShapeShortLabel
	default:
		return ShapeOther
	}
}

// identifierTag returns the matching identifier prefix, or "".
func identifierTag(s string) string {
	for _, tag := range identifierTags {
		if strings.HasPrefix(s, tag) {
			return tag
		}
	}
	return ""
}

func isIdentifier(item any) bool {
	s, ok := item.(string)
	return ok && identifierTag(s) != ""
}

// isRecordID reports whether the item is a rec identifier long enough to be a
// row id. Shorter rec strings are cross-references.
func isRecordID(item any) bool {
	s, ok := item.(string)
	return ok && strings.HasPrefix(s, "rec") && len(s) >= minRecordIDLen
}

// isMetadataInt reports whether the item is an integer below the exporter's
// internal code ceiling.
func isMetadataInt(item any) bool {
	n, ok := asInt(item)
	return ok && n < metadataIntCeiling
}

// isReferenceMarker matches single-int reference lists such as [94].
func isReferenceMarker(item any) bool {
	list, ok := item.([]any)
	if !ok || len(list) != 1 {
		return false
	}
	_, ok = asInt(list[0])
	return ok
}

// isEndMarker matches the two-element record terminator [0, "00"].
func isEndMarker(item any) bool {
	list, ok := item.([]any)
	return ok && isEndMarkerList(list)
}

func isEndMarkerList(list []any) bool {
	if len(list) != 2 {
		return false
	}
	n, ok := asInt(list[0])
	if !ok || n != 0 {
		return false
	}
	s, ok := list[1].(string)
	return ok && s == "00"
}

// assetDomains are the exporter's own hosts; URLs on them are never a
// record's website.
var assetDomains = []string{"airtable.com", "airtableusercontent.com", "v5.airtable"}

func isAssetURL(s string) bool {
	for _, d := range assetDomains {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

// isExternalURL matches http(s) URLs that are not on the exporter's domains.
func isExternalURL(s string) bool {
	return strings.HasPrefix(s, "http") && !isAssetURL(s)
}

// emojiLead reports whether any of the first n runes is non-ASCII. Tag lists
// in the observed exports lead with an emoji glyph.
func emojiLead(s string, n int) bool {
	for i, r := range []rune(s) {
		if i >= n {
			break
		}
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

// isTagList matches emoji-prefixed, semicolon-separated tag strings such as
// "🚀 Industries;Tech;Market".
func isTagList(s string) bool {
	return runeLen(s) > 5 && emojiLead(s, emojiLeadWindow) && strings.Contains(s, ";")
}

// isEmojiTag is the looser boundary-test variant: emoji lead, no separator
// requirement.
func isEmojiTag(s string) bool {
	return runeLen(s) > 5 && emojiLead(s, emojiLeadWindow)
}

func isLongText(s string) bool {
	return runeLen(s) > longTextMin && !strings.HasPrefix(s, "http")
}

// isShortLabel matches company-name-shaped strings: short, no emoji lead, not
// a URL, no tag separator.
func isShortLabel(s string) bool {
	n := runeLen(s)
	if n <= shortLabelMin || n >= shortLabelMax {
		return false
	}
	if emojiLead(s, emojiNameWindow) {
		return false
	}
	if strings.HasPrefix(s, "http") || strings.HasPrefix(s, "www.") {
		return false
	}
	return !strings.Contains(s, ";")
}

// isISOTimestampShape is the cheap structural test; parseTimestamp confirms.
func isISOTimestampShape(s string) bool {
	return strings.Contains(s, "T") && strings.Count(s, "-") >= 2 && strings.Count(s, ":") >= 2
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseTimestamp verifies that an ISO-shaped string round-trips a date parse.
// Parse failures just mean the candidate is not a created-time.
func parseTimestamp(s string) (time.Time, bool) {
	if !isISOTimestampShape(s) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var fileExtensions = []string{".png", ".jpg", ".jpeg", ".svg", ".gif", ".pdf", ".webp"}

func hasFileExtension(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range fileExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// isFileMetadata matches attachment noise: MIME types, bare filenames, and
// the exporter's thumbnail URLs. Full URLs with file extensions are kept.
func isFileMetadata(s string) bool {
	if strings.HasPrefix(s, "image/") || strings.HasPrefix(s, "application/") {
		return true
	}
	if hasFileExtension(s) && !strings.HasPrefix(s, "http") {
		return true
	}
	if strings.Contains(s, "airtable.com") &&
		(strings.Contains(strings.ToLower(s), "thumbnail") || strings.Contains(s, "/.euc1/")) {
		return true
	}
	return false
}

// newRecordSignal reports whether a string looks like the leading value of a
// different record: an external URL, a www-prefixed host, long text, or a
// short unprefixed label. Identifier strings are never signals; they show up
// as cross-references inside rows all the time.
func newRecordSignal(s string) bool {
	if identifierTag(s) != "" {
		return false
	}
	if isExternalURL(s) || strings.HasPrefix(s, "www.") {
		return true
	}
	if isLongText(s) {
		return true
	}
	return isShortLabel(s)
}

// intrusionSignal is the stricter mid-window variant: a separator-bearing tag
// list, an external URL, a www host, or long text. Short labels are excluded
// here because program names legitimately follow reference ids mid-row.
func intrusionSignal(s string) bool {
	if identifierTag(s) != "" {
		return false
	}
	if isTagList(s) {
		return true
	}
	if isExternalURL(s) || strings.HasPrefix(s, "www.") {
		return true
	}
	return isLongText(s)
}

// asInt extracts an integer from the decoder-dependent numeric types both
// encoding/json (float64) and msgpack (int/uint widths) produce.
func asInt(item any) (int64, bool) {
	switch n := item.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case float32:
		if float64(n) == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
