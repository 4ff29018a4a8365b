package flatseq

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// IdentityKey derives the deduplication key for a record from its highest-
// priority non-empty field. Record ids alone cannot identify a company: the
// flat export reuses ids across unrelated value runs, so identity comes from
// content first and falls back to id+hash only for records with no usable
// fields at all.
func IdentityKey(r *Record) string {
	if name := strings.TrimSpace(r.CompanyName); name != "" {
		return "name:" + name
	}
	if site := strings.TrimSpace(r.Website); site != "" {
		return "website:" + site
	}
	if desc := strings.TrimSpace(r.Description); desc != "" {
		return "desc:" + truncateRunes(desc, identityDescLen)
	}

	fields := r.fieldValues()
	sort.Strings(fields)
	joined := truncateRunes(strings.Join(fields, "|"), identityHashLen)
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("id:%s:%x", r.ID, sum[:8])
}

// Dedupe collapses records sharing an identity key, keeping the first
// occurrence verbatim and assigning sequential display ids. Output order is
// first-seen order; later duplicates are dropped whole, never field-merged.
func Dedupe(records []*Record) []*Record {
	seen := make(map[string]struct{}, len(records))
	unique := make([]*Record, 0, len(records))

	for _, r := range records {
		key := IdentityKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.UniqueID = fmt.Sprintf("row_%d", len(unique))
		unique = append(unique, r)
	}

	return unique
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
