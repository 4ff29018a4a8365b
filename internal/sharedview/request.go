// Package sharedview fetches the raw payload behind an Airtable shared-view
// link. The readSharedViewData endpoint is the one the web client itself
// calls: it needs the share's access policy replayed in the query string and
// answers in JSON or msgpack depending on the accept headers.
package sharedview

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://airtable.com/v0.3/view"

// RequestConfig carries everything needed to build one readSharedViewData
// request. The id/signature fields come verbatim from the share link and the
// page that served it; the endpoint rejects policies it did not sign.
type RequestConfig struct {
	BaseURL          string
	ViewID           string
	ShareID          string
	ApplicationID    string
	TableID          string
	GenerationNumber int
	Expires          string
	Signature        string

	// NestedResponseFormat asks for the structured per-row format instead of
	// the flat value sequence. The server honors it only for some shares.
	NestedResponseFormat bool
	// AllowMsgpack advertises msgpack support; responses shrink considerably.
	AllowMsgpack bool
}

// DefaultRequestConfig returns a config with the endpoint defaults filled in.
// Callers overlay the ids parsed from a share link on top.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		BaseURL:              defaultBaseURL,
		NestedResponseFormat: true,
		AllowMsgpack:         true,
	}
}

type policyAction struct {
	ModelClassName  string `json:"modelClassName"`
	ModelIDSelector string `json:"modelIdSelector"`
	Action          string `json:"action"`
}

type accessPolicy struct {
	AllowedActions   []policyAction `json:"allowedActions"`
	ShareID          string         `json:"shareId"`
	ApplicationID    string         `json:"applicationId"`
	GenerationNumber int            `json:"generationNumber"`
	Expires          string         `json:"expires"`
	Signature        string         `json:"signature"`
}

func (c RequestConfig) buildAccessPolicy() accessPolicy {
	return accessPolicy{
		AllowedActions: []policyAction{
			{ModelClassName: "view", ModelIDSelector: c.ViewID, Action: "readSharedViewData"},
			{ModelClassName: "view", ModelIDSelector: c.ViewID, Action: "getMetadataForPrinting"},
			{ModelClassName: "view", ModelIDSelector: c.ViewID, Action: "readSignedAttachmentUrls"},
			{
				ModelClassName:  "row",
				ModelIDSelector: fmt.Sprintf("rows *[displayedInView=%s]", c.ViewID),
				Action:          "createDocumentPreviewSession",
			},
		},
		ShareID:          c.ShareID,
		ApplicationID:    c.ApplicationID,
		GenerationNumber: c.GenerationNumber,
		Expires:          c.Expires,
		Signature:        c.Signature,
	}
}

// StringifiedObjectParams builds the JSON blob the endpoint expects in the
// stringifiedObjectParams query parameter.
func (c RequestConfig) StringifiedObjectParams() (string, error) {
	params := map[string]any{
		"shouldUseNestedResponseFormat": c.NestedResponseFormat,
	}
	if c.AllowMsgpack {
		params["allowMsgpackOfResult"] = true
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal object params: %w", err)
	}
	return string(data), nil
}

// BuildURL assembles the full readSharedViewData URL with a fresh request id.
func (c RequestConfig) BuildURL() (string, error) {
	objectParams, err := c.StringifiedObjectParams()
	if err != nil {
		return "", err
	}
	policy, err := json.Marshal(c.buildAccessPolicy())
	if err != nil {
		return "", fmt.Errorf("marshal access policy: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	query := url.Values{}
	query.Set("stringifiedObjectParams", objectParams)
	query.Set("requestId", newOpaqueID("req"))
	query.Set("accessPolicy", string(policy))

	return fmt.Sprintf("%s/%s/readSharedViewData?%s", base, c.ViewID, query.Encode()), nil
}

// newOpaqueID generates an Airtable-style identifier: a short alphabetic tag
// followed by 16 hex characters.
func newOpaqueID(tag string) string {
	id := uuid.New()
	return fmt.Sprintf("%s%x", tag, id[:8])
}
