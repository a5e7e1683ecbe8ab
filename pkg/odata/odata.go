// Package odata decodes the response envelopes of OData v2 and v4 services
// and normalizes the vendor-specific date encodings found in them.
package odata

import (
	"encoding/json"
	"fmt"
)

// Record is a single decoded entity. Shapes vary per entity set, so records
// stay schema-less.
type Record map[string]any

// Page is the result of extracting one decoded response body.
type Page struct {
	// Records are the entities carried by this response, in server order.
	Records []Record

	// NextURL is the server-supplied link to the following page.
	// Empty means end of data.
	NextURL string
}

// Extract locates the entity container and the next-page link in a raw
// response body. Three envelope shapes are supported, probed in fixed
// priority order:
//
//  1. d.results  - OData v2 collection
//  2. d          - OData v2 single entity
//  3. value      - OData v4 collection
//
// The next-page link is read from d.__next when the body carries a "d"
// container, and from @odata.nextLink otherwise; the two families never
// fall back to each other.
//
// A body matching none of the shapes yields an empty page, not an error,
// since upstreams commonly signal end-of-data that way.
func Extract(body []byte) (Page, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, fmt.Errorf("decode response body: %w", err)
	}

	var container json.RawMessage
	isV2 := false

	if d, ok := envelope["d"]; ok {
		isV2 = true
		container = d

		var inner map[string]json.RawMessage
		if err := json.Unmarshal(d, &inner); err == nil {
			if results, ok := inner["results"]; ok {
				container = results
			}
		}
	} else if value, ok := envelope["value"]; ok {
		container = value
	}

	page := Page{}

	if container != nil {
		records, err := decodeContainer(container)
		if err != nil {
			return Page{}, err
		}
		page.Records = records
	}

	if isV2 {
		page.NextURL = nextLinkFromV2(envelope["d"])
	} else {
		page.NextURL = stringField(envelope, "@odata.nextLink")
	}

	return page, nil
}

// decodeContainer turns the winning container value into a record slice,
// wrapping a single object as a one-element slice so iteration downstream
// is uniform.
func decodeContainer(raw json.RawMessage) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var single Record
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode entity container: %w", err)
	}
	return []Record{single}, nil
}

// nextLinkFromV2 reads d.__next; the link sits next to "results" inside the
// v2 container, not at the top level.
func nextLinkFromV2(d json.RawMessage) string {
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(d, &inner); err != nil {
		return ""
	}
	return stringField(inner, "__next")
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
