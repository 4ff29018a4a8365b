package sharedview

import (
	"fmt"
	"strings"
)

// ShareParams are the identifiers a share link can carry. Any field may be
// empty; the minimal valid link is just airtable.com/shrXXX.
type ShareParams struct {
	ApplicationID string
	ShareID       string
	TableID       string
	ViewID        string
}

// ParseShareURL extracts the app/shr/tbl path segments and an optional
// view=viw... query parameter from a shared-view link.
//
// Recognized shapes:
//
//	https://airtable.com/shrXXX
//	https://airtable.com/appXXX/shrXXX
//	https://airtable.com/appXXX/shrXXX/tblXXX?viewControls=on
func ParseShareURL(link string) (ShareParams, error) {
	var params ShareParams

	rest, ok := strings.CutPrefix(link, "https://airtable.com/")
	if !ok {
		rest, ok = strings.CutPrefix(link, "http://airtable.com/")
	}
	if !ok {
		return params, fmt.Errorf("not an airtable.com link: %s", link)
	}

	path, query, _ := strings.Cut(rest, "?")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		switch {
		case i == 0 && strings.HasPrefix(part, "app"):
			params.ApplicationID = part
		case strings.HasPrefix(part, "shr"):
			params.ShareID = part
		case strings.HasPrefix(part, "tbl"):
			params.TableID = part
		}
	}

	for _, kv := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(kv, "=")
		if key == "view" && strings.HasPrefix(value, "viw") {
			params.ViewID = value
		}
	}

	if params.ShareID == "" {
		return params, fmt.Errorf("no shr share id in link: %s", link)
	}
	return params, nil
}

// Apply overlays the parsed identifiers onto a request config, leaving config
// fields untouched where the link carried nothing.
func (p ShareParams) Apply(cfg *RequestConfig) {
	if p.ApplicationID != "" {
		cfg.ApplicationID = p.ApplicationID
	}
	if p.ShareID != "" {
		cfg.ShareID = p.ShareID
	}
	if p.TableID != "" {
		cfg.TableID = p.TableID
	}
	if p.ViewID != "" {
		cfg.ViewID = p.ViewID
	}
}
