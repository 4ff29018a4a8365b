package flatseq

import "sort"

// Options configures one pipeline run.
type Options struct {
	// Tables are the keyword tables injected into the field mapper.
	Tables KeywordTables
	// Source describes where the payload came from, for the result metadata.
	Source Metadata
}

// DefaultOptions returns options with the default keyword tables.
func DefaultOptions() Options {
	return Options{Tables: DefaultTables()}
}

// Organize runs the full reconstruction pipeline over a decoded export
// payload: locate the flat item sequence, sniff columns, detect row
// boundaries, extract and map each row, deduplicate, and link related
// records.
//
// The upstream format is not contractually guaranteed, so a payload without
// a recognizable items sequence produces a degraded result carrying the
// available top-level keys instead of an error.
func Organize(payload map[string]any, opts Options) *Result {
	items := locateItems(payload)
	if len(items) == 0 {
		return &Result{
			Error:       "No items found in payload",
			PayloadKeys: sortedKeys(payload),
		}
	}

	opts.Tables = opts.Tables.Defaulted()

	columns := SniffColumns(items)

	var records []*Record
	for _, row := range DetectRows(items) {
		rec := ExtractRecord(items, row)
		records = append(records, MapFields(items, rec, opts.Tables))
	}

	records = Dedupe(records)
	records = LinkRelated(records)

	meta := opts.Source
	meta.TotalItems = len(items)

	return &Result{
		Metadata:   &meta,
		Columns:    columns,
		Rows:       records,
		ColumnMap:  ColumnMapping(columns),
		Statistics: BuildStatistics(columns, records),
	}
}

// locateItems finds the flat sequence at the payload's "items" key or the
// nested "data.items" path.
func locateItems(payload map[string]any) []any {
	if items, ok := payload["items"].([]any); ok {
		return items
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if items, ok := data["items"].([]any); ok {
			return items
		}
	}
	return nil
}

// BuildStatistics summarizes a reconstructed result. A row counts as complete
// when it has a website, a name, and either a description or a program.
func BuildStatistics(columns []Column, records []*Record) *Statistics {
	stats := &Statistics{
		TotalColumns: len(columns),
		TotalRows:    len(records),
	}
	for _, r := range records {
		if r.Website != "" {
			stats.RowsWithWebsite++
		}
		if r.CompanyName != "" {
			stats.RowsWithName++
		}
		if r.Description != "" {
			stats.RowsWithDescription++
		}
		if r.Program != "" {
			stats.RowsWithProgram++
		}
		if r.Batch != "" {
			stats.RowsWithBatch++
		}
		if r.Website != "" && r.CompanyName != "" &&
			(r.Description != "" || r.Program != "") {
			stats.RowsComplete++
		}
	}
	return stats
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
