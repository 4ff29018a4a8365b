package flatseq

import "testing"

// buildRecord runs detection, extraction and mapping over a full sequence and
// returns the mapped record of the first detected row.
func buildRecord(t *testing.T, items []any) *Record {
	t.Helper()
	rows := DetectRows(items)
	if len(rows) == 0 {
		t.Fatal("no rows detected")
	}
	rec := ExtractRecord(items, rows[0])
	return MapFields(items, rec, DefaultTables())
}

func TestKeywordTables_DefaultedFillsEachTable(t *testing.T) {
	tables := KeywordTables{FunctionWords: []string{"der", "die", "das"}}.Defaulted()

	if len(tables.FunctionWords) != 3 || tables.FunctionWords[0] != "der" {
		t.Errorf("override lost: %v", tables.FunctionWords)
	}
	if len(tables.ProgramKeywords) == 0 {
		t.Error("ProgramKeywords not defaulted")
	}
	if len(tables.NameStopwords) == 0 {
		t.Error("NameStopwords not defaulted")
	}
	if len(tables.SentenceStarters) == 0 {
		t.Error("SentenceStarters not defaulted")
	}
}

func TestMapFields_FullRow(t *testing.T) {
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		"https://acme.test",
		"https://airtable.com/directUploadAttachment/att123/logo",
		[]any{94},
		"recRef9", // short cross-reference id, inert
		"Incubateur HEC Paris",
		"[Incubateur HEC Paris] Batch 12",
		"🚀 Industries;Tech;Product",
		testDescription,
		"Acme Corp",
		"2024-01-01T00:00:00.000Z",
		[]any{0, "00"},
	}
	r := buildRecord(t, items)

	if r.MarketTags != "🚀 Industries;Tech;Market" {
		t.Errorf("market-tags = %q", r.MarketTags)
	}
	if r.Website != "https://acme.test" {
		t.Errorf("website = %q", r.Website)
	}
	if r.LogoURL != "https://airtable.com/directUploadAttachment/att123/logo" {
		t.Errorf("logo-url = %q", r.LogoURL)
	}
	if r.Program != "Incubateur HEC Paris" {
		t.Errorf("program = %q", r.Program)
	}
	if r.Batch != "[Incubateur HEC Paris] Batch 12" {
		t.Errorf("batch = %q", r.Batch)
	}
	if r.ProductTags != "🚀 Industries;Tech;Product" {
		t.Errorf("product-tags = %q", r.ProductTags)
	}
	if r.Description != testDescription {
		t.Errorf("description = %q", r.Description)
	}
	if r.CompanyName != "Acme Corp" {
		t.Errorf("company-name = %q", r.CompanyName)
	}
	if r.CreatedTime != "2024-01-01T00:00:00.000Z" {
		t.Errorf("created-time = %q", r.CreatedTime)
	}
}

func TestMapFields_FieldExclusivity(t *testing.T) {
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		"https://acme.test",
		"Incubateur Station F",
		"[Incubateur Station F] Spring",
		testDescription,
		"Acme Corp",
		"2024-01-01T00:00:00.000Z",
		[]any{0, "00"},
	}
	r := buildRecord(t, items)

	seen := map[string]string{}
	for _, f := range []struct{ name, v string }{
		{"market-tags", r.MarketTags}, {"website", r.Website},
		{"logo-url", r.LogoURL}, {"program", r.Program}, {"batch", r.Batch},
		{"product-tags", r.ProductTags}, {"description", r.Description},
		{"company-name", r.CompanyName}, {"created-time", r.CreatedTime},
	} {
		if f.v == "" {
			continue
		}
		if prev, dup := seen[f.v]; dup {
			t.Errorf("value %q assigned to both %s and %s", f.v, prev, f.name)
		}
		seen[f.v] = f.name
	}
}

func TestMapFields_WwwHostGetsScheme(t *testing.T) {
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		"www.acme.test",
		"Acme Corp",
		[]any{0, "00"},
	}
	r := buildRecord(t, items)
	if r.Website != "https://www.acme.test" {
		t.Errorf("website = %q, want scheme-prefixed www host", r.Website)
	}
}

func TestMapFields_ProgramExcludesBracketedBatch(t *testing.T) {
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		"[Incubateur HEC Paris] Batch 12", // bracketed: batch, not program
		"Incubateur HEC Paris",
		[]any{0, "00"},
	}
	r := buildRecord(t, items)
	if r.Program != "Incubateur HEC Paris" {
		t.Errorf("program = %q", r.Program)
	}
	if r.Batch != "[Incubateur HEC Paris] Batch 12" {
		t.Errorf("batch = %q", r.Batch)
	}
}

func TestMapFields_DescriptionNeedsFunctionWords(t *testing.T) {
	noEnglish := "Zzzzz qqqq wwww kkkk zzzz qqqq wwww kkkk zzzz qqqq wwww kkkk zzzz qqqq wwww kkkk zzzz!!"
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		noEnglish,
		[]any{0, "00"},
	}
	r := buildRecord(t, items)
	if r.Description != "" {
		t.Errorf("description = %q, want none for non-English-looking text", r.Description)
	}
}

func TestMapFields_CompanyNameSearchStartsAfterDescription(t *testing.T) {
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		"Preamble Label", // before the description: must not become the name
		testDescription,
		"Acme Corp",
		[]any{0, "00"},
	}
	r := buildRecord(t, items)
	if r.CompanyName != "Acme Corp" {
		t.Errorf("company-name = %q, want the label after the description", r.CompanyName)
	}
}

func TestMapFields_CompanyNameRejections(t *testing.T) {
	items := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		testDescription,
		"2024-01-01T00:00:00.000Z",   // date shape
		"acme logo dark",             // stopword
		"The team ships fast",        // sentence starter
		"Acme Corp",
		[]any{0, "00"},
	}
	r := buildRecord(t, items)
	if r.CompanyName != "Acme Corp" {
		t.Errorf("company-name = %q, want Acme Corp", r.CompanyName)
	}
}

func TestMapFields_WebsiteNotLeakedAcrossEndMarker(t *testing.T) {
	// The mapper's own guard: hand the picker a retained list that wrongly
	// includes a URL sitting behind an end marker followed by a new-record
	// signal.
	items := []any{
		"recAAA1111111",    // 0
		testDescription,    // 1
		"Alpha Labs",       // 2
		[]any{0, "00"},     // 3
		92,                 // 4
		"https://beta.example", // 5: next record's site
		"Beta Co",          // 6
	}
	rec := ExtractedRecord{
		ID:  "recAAA1111111",
		Row: CandidateRow{Start: 0, End: len(items)},
		Retained: []RetainedValue{
			{Pos: 1, Value: testDescription},
			{Pos: 2, Value: "Alpha Labs"},
			{Pos: 5, Value: "https://beta.example"},
		},
	}
	r := MapFields(items, rec, DefaultTables())
	if r.Website != "" {
		t.Errorf("website = %q, want rejection of the cross-marker URL", r.Website)
	}
}

func TestRetractWebsite_DomainKeywordMismatch(t *testing.T) {
	// A name/domain mismatch alone is fine near the row start...
	near := []any{
		"recAAA1111111",
		"🚀 Industries;Tech;Market",
		"https://totally-unrelated.example",
		testDescription,
		"Acme Corp",
		[]any{0, "00"},
	}
	r := buildRecord(t, near)
	if r.Website == "" {
		t.Error("near website with mismatched domain must survive")
	}

	// ...but a mismatched website deep in the window gets retracted.
	far := []any{"recAAA1111111", "🚀 Industries;Tech;Market", testDescription, "Acme Corp"}
	for i := 0; i < websiteMaxOffset; i++ {
		far = append(far, 250+i) // non-metadata ints, retained by nothing
	}
	far = append(far, "https://totally-unrelated.example", []any{0, "00"})
	r = buildRecord(t, far)
	if r.Website != "" {
		t.Errorf("website = %q, want retraction of the far mismatched domain", r.Website)
	}
}

func TestRetractWebsite_DomainKeywordMatchIsKept(t *testing.T) {
	items := []any{"recAAA1111111", "🚀 Industries;Tech;Market", testDescription, "Acme Corp"}
	for i := 0; i < websiteMaxOffset; i++ {
		items = append(items, 250+i)
	}
	items = append(items, "https://acme.test", []any{0, "00"})
	r := buildRecord(t, items)
	if r.Website != "https://acme.test" {
		t.Errorf("website = %q, want keyword-matched domain kept despite distance", r.Website)
	}
}

func TestMapFields_AuditListIsCapped(t *testing.T) {
	items := []any{"recAAA1111111", "🚀 Industries;Tech;Market"}
	for i := 0; i < maxAuditValues+10; i++ {
		items = append(items, "Label Number "+string(rune('A'+i%26))+string(rune('a'+i%26)))
	}
	rows := DetectRows(items)
	rec := ExtractRecord(items, rows[0])
	r := MapFields(items, rec, DefaultTables())

	if len(r.AllValues) > maxAuditValues {
		t.Errorf("audit list has %d entries, cap is %d", len(r.AllValues), maxAuditValues)
	}
}
