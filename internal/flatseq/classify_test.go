package flatseq

import "testing"

func TestClassify_Identifiers(t *testing.T) {
	tests := []struct {
		item string
		tag  string
	}{
		{"recAAA1111111", "rec"},
		{"fldXYZ", "fld"},
		{"tbluZLSM3l4mENfIk", "tbl"},
		{"viw2BuXqXMTdAlSy8", "viw"},
		{"selABC", "sel"},
		{"usrQ", "usr"},
		{"attLogo12345", "att"},
	}
	for _, tt := range tests {
		c := Classify(tt.item)
		if c.Class != ClassIdentifier {
			t.Errorf("Classify(%q).Class = %v, want identifier", tt.item, c.Class)
		}
		if c.Tag != tt.tag {
			t.Errorf("Classify(%q).Tag = %q, want %q", tt.item, c.Tag, tt.tag)
		}
	}
}

func TestClassify_MetadataAndMarkers(t *testing.T) {
	if c := Classify(nil); c.Class != ClassMetadata {
		t.Errorf("nil: got %v, want metadata", c.Class)
	}
	if c := Classify(92); c.Class != ClassMetadata {
		t.Errorf("small int: got %v, want metadata", c.Class)
	}
	// encoding/json decodes all numbers as float64
	if c := Classify(float64(95)); c.Class != ClassMetadata {
		t.Errorf("small float64: got %v, want metadata", c.Class)
	}
	if c := Classify(int64(199)); c.Class != ClassMetadata {
		t.Errorf("int64 199: got %v, want metadata", c.Class)
	}
	if c := Classify(1200); c.Class != ClassValue {
		t.Errorf("1200: got %v, want value", c.Class)
	}
	if c := Classify(true); c.Class != ClassMetadata {
		t.Errorf("bool: got %v, want metadata", c.Class)
	}

	if c := Classify([]any{95}); c.Marker != MarkerReference {
		t.Errorf("[95]: got %v, want reference marker", c.Marker)
	}
	if c := Classify([]any{0, "00"}); c.Marker != MarkerEnd {
		t.Errorf(`[0,"00"]: got %v, want end marker`, c.Marker)
	}
	if c := Classify([]any{float64(0), "00"}); c.Marker != MarkerEnd {
		t.Errorf(`json-decoded [0,"00"]: got %v, want end marker`, c.Marker)
	}
	if c := Classify([]any{1, "00"}); c.Marker == MarkerEnd {
		t.Error(`[1,"00"] must not be an end marker`)
	}
	if c := Classify([]any{0, "01"}); c.Marker == MarkerEnd {
		t.Error(`[0,"01"] must not be an end marker`)
	}
}

func TestValueShapes(t *testing.T) {
	tests := []struct {
		item  string
		shape ValueShape
	}{
		{"https://acme.test", ShapeURL},
		{"www.acme.test", ShapeURL},
		{"🚀 Industries;Tech;Market", ShapeTagList},
		{"2024-01-01T00:00:00.000Z", ShapeTimestamp},
		{"image/png", ShapeFileMeta},
		{"logo.png", ShapeFileMeta},
		{"Acme Corp", ShapeShortLabel},
	}
	for _, tt := range tests {
		c := Classify(tt.item)
		if c.Class != ClassValue || c.Shape != tt.shape {
			t.Errorf("Classify(%q) = %+v, want value shape %v", tt.item, c, tt.shape)
		}
	}
}

func TestIsExternalURL_ExcludesAssetDomains(t *testing.T) {
	external := []string{"https://acme.test", "http://startup.example/about"}
	for _, u := range external {
		if !isExternalURL(u) {
			t.Errorf("isExternalURL(%q) = false, want true", u)
		}
	}
	internal := []string{
		"https://airtable.com/v0.3/view/viw123",
		"https://dl.airtableusercontent.com/.attachments/abc",
		"https://v5.airtable-thumbnails.example/xyz",
	}
	for _, u := range internal {
		if isExternalURL(u) {
			t.Errorf("isExternalURL(%q) = true, want false", u)
		}
	}
}

func TestIsFileMetadata(t *testing.T) {
	meta := []string{
		"image/png",
		"application/pdf",
		"logo.png",
		"Screenshot 2024.JPG",
		"https://airtable.com/thumbnails/small/abc",
		"https://airtable.com/.euc1/att123",
	}
	for _, s := range meta {
		if !isFileMetadata(s) {
			t.Errorf("isFileMetadata(%q) = false, want true", s)
		}
	}
	// a full URL with a file extension is a real value
	if isFileMetadata("https://acme.test/logo.png") {
		t.Error("full URL with extension must not be metadata")
	}
}

func TestIsShortLabel(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"Acme Corp", true},
		{"abc", false},                 // too short (exclusive bound)
		{"ab", false},                  // too short
		{"🚀 Industries;Tech", false},  // emoji lead
		{"a;b;c list", false},          // separator
		{"https://acme.test", false},   // URL
		{"www.acme.test", false},       // www host
	}
	for _, tt := range tests {
		if got := isShortLabel(tt.s); got != tt.want {
			t.Errorf("isShortLabel(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	valid := []string{
		"2024-01-01T00:00:00.000Z",
		"2024-06-15T08:30:00Z",
		"2024-06-15T08:30:00",
	}
	for _, s := range valid {
		if _, ok := parseTimestamp(s); !ok {
			t.Errorf("parseTimestamp(%q) failed, want success", s)
		}
	}
	invalid := []string{
		"2024-01-01",                // no time part
		"not a date T -- ::",        // shape without substance
		"2024-13-45T99:99:99.000Z",  // shape ok, parse fails
		"Acme Corp",                 // plain label
	}
	for _, s := range invalid {
		if _, ok := parseTimestamp(s); ok {
			t.Errorf("parseTimestamp(%q) succeeded, want failure", s)
		}
	}
}

func TestNewRecordSignal(t *testing.T) {
	signals := []string{
		"https://acme.test",
		"www.acme.test",
		"Acme Corp",
		"This is a long description with the and for words spread well past the fifty character line",
	}
	for _, s := range signals {
		if !newRecordSignal(s) {
			t.Errorf("newRecordSignal(%q) = false, want true", s)
		}
	}
	// identifiers are never signals, no matter their shape
	nonSignals := []string{
		"recBBB2222222",
		"attLogo12345",
		"🚀 Industries;Tech;Market",
		"https://airtable.com/view",
	}
	for _, s := range nonSignals {
		if newRecordSignal(s) {
			t.Errorf("newRecordSignal(%q) = true, want false", s)
		}
	}
}

func TestIntrusionSignal(t *testing.T) {
	if !intrusionSignal("🚀 Industries;Tech;Market") {
		t.Error("separator-bearing tag list must be an intrusion signal")
	}
	// short labels are not intrusion signals: program names follow
	// reference ids mid-row all the time
	if intrusionSignal("Acme Corp") {
		t.Error("short label must not be an intrusion signal")
	}
	if intrusionSignal("recBBB2222222") {
		t.Error("identifier must not be an intrusion signal")
	}
}
