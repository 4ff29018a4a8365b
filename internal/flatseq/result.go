package flatseq

// Column is one best-effort entry of the sniffed column directory. Entries
// are kept in scan order and may repeat per id; the export itself repeats
// column blocks and the directory mirrors that.
type Column struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Record is one reconstructed company row. Fields the heuristics could not
// place (or later retracted) are simply absent from the JSON output; there
// are no sentinel values.
type Record struct {
	ID       string `json:"id"`
	UniqueID string `json:"_unique_id,omitempty"`

	MarketTags  string `json:"market-tags,omitempty"`
	Website     string `json:"website,omitempty"`
	LogoURL     string `json:"logo-url,omitempty"`
	Program     string `json:"program,omitempty"`
	Batch       string `json:"batch,omitempty"`
	ProductTags string `json:"product-tags,omitempty"`
	Description string `json:"description,omitempty"`
	CompanyName string `json:"company-name,omitempty"`
	CreatedTime string `json:"created-time,omitempty"`

	// AllValues is the audit list of retained raw values, capped at
	// maxAuditValues entries.
	AllValues []string `json:"_all_values,omitempty"`
}

// CapAuditValues truncates an audit list to the documented maximum. Both
// reconstruction paths apply it so wide tables never bloat the output.
func CapAuditValues(values []string) []string {
	if len(values) > maxAuditValues {
		return values[:maxAuditValues]
	}
	return values
}

// fieldValues returns the mapped field values that are set, in declaration
// order. Used for identity hashing and already-mapped checks.
func (r *Record) fieldValues() []string {
	all := []struct{ name, value string }{
		{"market-tags", r.MarketTags},
		{"website", r.Website},
		{"logo-url", r.LogoURL},
		{"program", r.Program},
		{"batch", r.Batch},
		{"product-tags", r.ProductTags},
		{"description", r.Description},
		{"company-name", r.CompanyName},
		{"created-time", r.CreatedTime},
	}
	out := make([]string, 0, len(all))
	for _, f := range all {
		if f.value != "" {
			out = append(out, f.name+"="+f.value)
		}
	}
	return out
}

// Metadata describes the source payload the result was built from.
type Metadata struct {
	SourceURL   string `json:"source_url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	TotalItems  int    `json:"total_items"`
}

// Statistics summarizes one pipeline run.
type Statistics struct {
	TotalColumns        int `json:"total_columns"`
	TotalRows           int `json:"total_rows"`
	RowsWithWebsite     int `json:"rows_with_website"`
	RowsWithName        int `json:"rows_with_name"`
	RowsWithDescription int `json:"rows_with_description"`
	RowsWithProgram     int `json:"rows_with_program"`
	RowsWithBatch       int `json:"rows_with_batch"`
	RowsComplete        int `json:"rows_complete"`
}

// Result is the terminal output of the pipeline. When no items sequence can
// be located, only Error and PayloadKeys are populated.
type Result struct {
	Error       string            `json:"error,omitempty"`
	PayloadKeys []string          `json:"payload_keys,omitempty"`
	Metadata    *Metadata         `json:"metadata,omitempty"`
	Columns     []Column          `json:"columns,omitempty"`
	Rows        []*Record         `json:"rows,omitempty"`
	ColumnMap   map[string]string `json:"column_mapping,omitempty"`
	Statistics  *Statistics       `json:"statistics,omitempty"`
}
