package flatseq

import "strings"

// LinkRelated attaches orphaned batch records to the record that owns them.
//
// The export emits batch labels as their own tiny rows: a batch field and
// nothing else. Each label embeds the owning program's name in brackets
// ("[Acme Batch] Spring 2024"), so a second pass indexes records by program
// name, copies the orphan's batch onto the first matching record (when that
// record has no batch of its own), and drops the orphan.
//
// Records are merged into an id-keyed map first: when two rows share an id
// the later one wins. The export genuinely repeats ids across records and
// gives no evidence which copy is authoritative; last-writer-wins is the
// documented policy here, not an accident.
func LinkRelated(records []*Record) []*Record {
	programIndex := make(map[string][]*Record)
	var orphans []*Record

	for _, r := range records {
		if r.Program != "" {
			programIndex[r.Program] = append(programIndex[r.Program], r)
		}
		if r.Batch != "" && r.Program == "" &&
			r.Website == "" && r.CompanyName == "" && r.Description == "" {
			orphans = append(orphans, r)
		}
	}

	// id-keyed merge preserving first-insertion order
	order := make([]string, 0, len(records))
	byID := make(map[string]*Record, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, ok := byID[r.ID]; !ok {
			order = append(order, r.ID)
		}
		clone := *r
		byID[r.ID] = &clone
	}

	dropped := make(map[string]struct{})
	for _, orphan := range orphans {
		program := batchProgramName(orphan.Batch)
		if program == "" {
			continue
		}
		for _, owner := range programIndex[program] {
			merged, ok := byID[owner.ID]
			if !ok {
				continue
			}
			if merged.Batch == "" {
				merged.Batch = orphan.Batch
			}
			dropped[orphan.ID] = struct{}{}
			break
		}
	}

	out := make([]*Record, 0, len(order))
	for _, id := range order {
		if _, gone := dropped[id]; gone {
			continue
		}
		out = append(out, byID[id])
	}
	return out
}

// batchProgramName extracts the bracketed program name from a batch label:
// the text before the first "]" with brackets stripped.
func batchProgramName(batch string) string {
	if !strings.Contains(batch, "[") || !strings.Contains(batch, "]") {
		return ""
	}
	head, _, _ := strings.Cut(batch, "]")
	return strings.TrimSpace(strings.ReplaceAll(head, "[", ""))
}
