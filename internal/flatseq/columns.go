package flatseq

// fieldTypeTags is the closed vocabulary of Airtable field types the sniffer
// recognizes when it follows a fld identifier.
var fieldTypeTags = map[string]struct{}{
	"singleLineText": {}, "multilineText": {}, "email": {}, "url": {},
	"phoneNumber": {}, "number": {}, "percent": {}, "currency": {},
	"duration": {}, "rating": {}, "checkbox": {}, "date": {}, "dateTime": {},
	"multipleAttachments": {}, "multipleRecordLinks": {}, "singleSelect": {},
	"multipleSelects": {}, "formula": {}, "rollup": {}, "count": {},
	"multipleAttachment": {}, "foreignKey": {}, "autoNumber": {},
	"barcode": {}, "button": {}, "createdTime": {}, "lastModifiedTime": {},
	"createdBy": {}, "lastModifiedBy": {},
}

// SniffColumns scans the flat sequence once, independent of row structure,
// and recovers a best-effort column directory from string adjacency: a fld
// identifier, usually followed by its display name (sometimes with a null in
// between) and, within the next few items, a type tag.
//
// Duplicate ids are kept on purpose: the export repeats column blocks and
// callers that want a unique mapping collapse them afterwards.
func SniffColumns(items []any) []Column {
	var columns []Column

	for i, item := range items {
		id, ok := item.(string)
		if !ok || identifierTag(id) != "fld" {
			continue
		}

		col := Column{ID: id}

		if i+1 < len(items) {
			switch next := items[i+1].(type) {
			case string:
				if identifierTag(next) == "" {
					col.Name = next
				}
			case nil:
				if i+2 < len(items) {
					if name, ok := items[i+2].(string); ok {
						col.Name = name
					}
				}
			}
		}

		for j := i + 1; j < len(items) && j <= i+columnLookahead; j++ {
			s, ok := items[j].(string)
			if !ok {
				continue
			}
			if _, known := fieldTypeTags[s]; known {
				col.Type = s
				break
			}
		}

		if col.Name != "" || col.Type != "" {
			columns = append(columns, col)
		}
	}

	return columns
}

// ColumnMapping collapses a column directory into an id→name lookup. Ids
// without a sniffed name map to themselves so the lookup never loses keys.
func ColumnMapping(columns []Column) map[string]string {
	m := make(map[string]string, len(columns))
	for _, col := range columns {
		name := col.Name
		if name == "" {
			name = col.ID
		}
		m[col.ID] = name
	}
	return m
}
