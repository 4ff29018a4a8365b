// Package nested handles the structured shared-view response format. When the
// endpoint honors shouldUseNestedResponseFormat, the payload carries
// data.table.{columns,rows} with cell values keyed by column id, and
// reconstruction is plain lookup instead of the flat-sequence heuristics.
package nested

import (
	"fmt"
	"sort"
	"strings"

	"github.com/histia/viewsift/internal/flatseq"
)

// OrganizeAuto picks the reconstruction path for a payload: the structured
// table parser when the nested format is present, the flat-sequence pipeline
// otherwise.
func OrganizeAuto(payload map[string]any, tables flatseq.KeywordTables, source flatseq.Metadata) *flatseq.Result {
	if Detect(payload) {
		return Organize(payload, source)
	}
	return flatseq.Organize(payload, flatseq.Options{Tables: tables, Source: source})
}

// Detect reports whether the payload carries the structured table format.
func Detect(payload map[string]any) bool {
	table := tableOf(payload)
	if table == nil {
		return false
	}
	_, hasRows := table["rows"].([]any)
	_, hasCols := table["columns"].([]any)
	return hasRows || hasCols
}

func tableOf(payload map[string]any) map[string]any {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return nil
	}
	table, ok := data["table"].(map[string]any)
	if !ok {
		return nil
	}
	return table
}

// column is the parsed form of one data.table.columns entry.
type column struct {
	id      string
	name    string
	typ     string
	choices map[string]string // sel id -> display name
}

// Organize reconstructs a result from the structured format. It mirrors the
// flat-sequence pipeline's output shape so downstream consumers never care
// which path produced a result.
func Organize(payload map[string]any, source flatseq.Metadata) *flatseq.Result {
	table := tableOf(payload)
	if table == nil {
		return &flatseq.Result{
			Error:       "No table found in payload",
			PayloadKeys: topLevelKeys(payload),
		}
	}

	columns := parseColumns(table)
	byID := make(map[string]column, len(columns))
	for _, col := range columns {
		byID[col.id] = col
	}

	var records []*flatseq.Record
	rows, _ := table["rows"].([]any)
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, parseRow(row, byID))
	}
	for i, r := range records {
		r.UniqueID = fmt.Sprintf("row_%d", i)
	}

	outCols := make([]flatseq.Column, len(columns))
	mapping := make(map[string]string, len(columns))
	for i, col := range columns {
		outCols[i] = flatseq.Column{ID: col.id, Name: col.name, Type: col.typ}
		name := col.name
		if name == "" {
			name = col.id
		}
		mapping[col.id] = name
	}

	return &flatseq.Result{
		Metadata:   &source,
		Columns:    outCols,
		Rows:       records,
		ColumnMap:  mapping,
		Statistics: flatseq.BuildStatistics(outCols, records),
	}
}

func parseColumns(table map[string]any) []column {
	raw, _ := table["columns"].([]any)
	columns := make([]column, 0, len(raw))

	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		col := column{
			id:   stringAt(entry, "id"),
			name: stringAt(entry, "name"),
			typ:  stringAt(entry, "type"),
		}
		if col.id == "" {
			continue
		}
		if opts, ok := entry["typeOptions"].(map[string]any); ok {
			if choices, ok := opts["choices"].(map[string]any); ok {
				col.choices = make(map[string]string, len(choices))
				for selID, choice := range choices {
					if c, ok := choice.(map[string]any); ok {
						col.choices[selID] = stringAt(c, "name")
					}
				}
			}
		}
		columns = append(columns, col)
	}
	return columns
}

func parseRow(row map[string]any, columns map[string]column) *flatseq.Record {
	r := &flatseq.Record{
		ID:          stringAt(row, "id"),
		CreatedTime: stringAt(row, "createdTime"),
	}

	cells, _ := row["cellValuesByColumnId"].(map[string]any)
	colIDs := make([]string, 0, len(cells))
	for id := range cells {
		colIDs = append(colIDs, id)
	}
	sort.Strings(colIDs)

	for _, colID := range colIDs {
		col, known := columns[colID]
		if !known {
			continue
		}
		value := cellString(cells[colID], col)
		if value == "" {
			continue
		}
		assignField(r, col.name, value)
		r.AllValues = append(r.AllValues, value)
	}
	r.AllValues = flatseq.CapAuditValues(r.AllValues)
	return r
}

// cellString flattens one cell value to its display string: attachment lists
// become their URLs, foreign-key links their display names, and select choice
// ids resolve through the column's typeOptions.
func cellString(value any, col column) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		var parts []string
		for _, item := range v {
			switch cell := item.(type) {
			case map[string]any:
				if url := stringAt(cell, "url"); url != "" {
					parts = append(parts, url)
				} else if name := stringAt(cell, "foreignRowDisplayName"); name != "" {
					parts = append(parts, name)
				}
			case string:
				if strings.HasPrefix(cell, "sel") {
					if name, ok := col.choices[cell]; ok && name != "" {
						parts = append(parts, name)
						continue
					}
				}
				parts = append(parts, cell)
			default:
				parts = append(parts, fmt.Sprint(cell))
			}
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(v)
	}
}

// assignField routes a named cell into the record's typed fields. Column
// naming varies across bases; matching is case-insensitive on the usual
// vocabulary. Unmatched columns still land in the audit list.
func assignField(r *flatseq.Record, columnName, value string) {
	switch normalizeColumnName(columnName) {
	case "website", "url", "site":
		if r.Website == "" {
			r.Website = value
		}
	case "name", "company", "companyname", "startup":
		if r.CompanyName == "" {
			r.CompanyName = value
		}
	case "description", "about", "pitch":
		if r.Description == "" {
			r.Description = value
		}
	case "logo", "logourl":
		if r.LogoURL == "" {
			r.LogoURL = value
		}
	case "program", "currentprogram":
		if r.Program == "" {
			r.Program = value
		}
	case "batch", "cohort":
		if r.Batch == "" {
			r.Batch = value
		}
	case "market", "markettags", "industry", "industries":
		if r.MarketTags == "" {
			r.MarketTags = value
		}
	case "product", "producttags", "technologies":
		if r.ProductTags == "" {
			r.ProductTags = value
		}
	case "createdtime", "created":
		if r.CreatedTime == "" {
			r.CreatedTime = value
		}
	}
}

func normalizeColumnName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func topLevelKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
