package sharedview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// decodePayload turns a response body into a payload map according to its
// content type. Unknown content types are tried as JSON; the endpoint has
// been observed omitting the header on error pages.
func decodePayload(contentType string, body []byte) (map[string]any, error) {
	switch {
	case strings.Contains(contentType, "application/msgpack"):
		doc, err := decodeMsgpack(body)
		if err != nil {
			// Some proxies relabel JSON bodies; fall back before giving up.
			if m, jsonErr := decodeJSON(body); jsonErr == nil {
				return m, nil
			}
			return nil, err
		}
		return asPayloadMap(doc)
	default:
		return decodeJSON(body)
	}
}

func decodeJSON(body []byte) (map[string]any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode json response: %w", err)
	}
	return asPayloadMap(doc)
}

// decodeMsgpack unpacks one or more msgpack documents from the body. The
// endpoint sometimes streams several documents back to back; a single
// document is returned as is, multiple maps are merged, and anything else is
// wrapped under an items key.
func decodeMsgpack(body []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(body))

	var docs []any
	for {
		doc, err := dec.DecodeInterface()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(docs) > 0 {
				break
			}
			return nil, fmt.Errorf("decode msgpack response: %w", err)
		}
		docs = append(docs, normalizeValue(doc))
	}

	switch len(docs) {
	case 0:
		return nil, errors.New("empty msgpack response")
	case 1:
		return docs[0], nil
	}

	merged := make(map[string]any)
	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			return map[string]any{"items": docs}, nil
		}
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged, nil
}

// asPayloadMap coerces a decoded document into the payload-map shape the
// pipeline consumes. A bare top-level list is the flat item sequence itself.
func asPayloadMap(doc any) (map[string]any, error) {
	switch v := doc.(type) {
	case map[string]any:
		return v, nil
	case []any:
		return map[string]any{"items": v}, nil
	default:
		return nil, fmt.Errorf("unexpected payload shape %T", doc)
	}
}

// normalizeValue rewrites msgpack's loosely typed containers into the same
// shapes encoding/json produces: string-keyed maps and []any slices, applied
// recursively. Msgpack map keys may decode as ints or binary.
func normalizeValue(v any) any {
	switch m := v.(type) {
	case map[string]any:
		for k, inner := range m {
			m[k] = normalizeValue(inner)
		}
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, inner := range m {
			out[keyString(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		for i, inner := range m {
			m[i] = normalizeValue(inner)
		}
		return m
	case []byte:
		return string(m)
	default:
		return v
	}
}

func keyString(k any) string {
	switch s := k.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(k)
	}
}
