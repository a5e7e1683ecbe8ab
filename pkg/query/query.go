// Package query composes the initial upstream request URL from an entity set
// path, pass-through client parameters, and an optional since filter.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Reserved parameter names that drive connector behavior and are never
// forwarded upstream.
const (
	ParamSince         = "since"
	ParamSinceProperty = "since_property"
)

// Filter describes an incremental fetch threshold translated into an
// upstream $filter clause.
type Filter struct {
	Property string
	Value    string
	Enabled  bool
}

// BuildURL assembles the first page URL. $format defaults to json but a
// client-supplied value wins; all other client parameters are passed through
// verbatim (sorted for determinism); the since filter, when enabled, is
// appended as "$filter={property} gt '{value}'".
func BuildURL(baseURL, entitySetPath string, params url.Values, since Filter) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(baseURL, "/"))
	b.WriteString("/")
	b.WriteString(strings.TrimPrefix(entitySetPath, "/"))

	format := "json"
	if f := params.Get("$format"); f != "" {
		format = f
	}
	b.WriteString("?$format=")
	b.WriteString(url.QueryEscape(format))

	keys := make([]string, 0, len(params))
	for key := range params {
		switch key {
		case "$format", ParamSince, ParamSinceProperty:
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, value := range params[key] {
			b.WriteString("&")
			b.WriteString(url.QueryEscape(key))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(value))
		}
	}

	if since.Enabled {
		clause := fmt.Sprintf("%s gt '%s'", since.Property, since.Value)
		b.WriteString("&$filter=")
		b.WriteString(url.QueryEscape(clause))
	}

	return b.String()
}
