package curation

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Tracking parameters stripped during address canonicalization. Two fetches
// of the same content frequently differ only in these.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"igshid": true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
	"si":     true,
}

// CanonicalizeAddress normalizes a content URL into the canonical form used
// as the deduplication key. The ruleset is fixed here in one place:
// lowercase scheme and host, "www." prefix stripped, default ports dropped,
// fragment dropped, tracking query parameters removed, remaining parameters
// sorted, trailing slash stripped on non-root paths, NFC-normalized path.
func CanonicalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("address is empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to parse address: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address %q is not absolute", trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	switch u.Scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	u.Fragment = ""
	u.RawQuery = canonicalizeQuery(u.Query())

	path := norm.NFC.String(u.Path)
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path

	return u.String(), nil
}

func canonicalizeQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if trackingParams[key] || strings.HasPrefix(key, "utm_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	kept := url.Values{}
	for _, key := range keys {
		kept[key] = values[key]
	}
	return kept.Encode()
}
