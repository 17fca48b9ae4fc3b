package experiment

import (
	"net/url"
	"sort"
	"strings"
)

// Encode URL-encodes params with keys in sorted order.
func Encode(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// PlayerURL returns the page URL that hosts the given player backend:
// {stub}/{backend}/index.php?{params}.
func PlayerURL(stub, backend string, params map[string]string) string {
	return strings.TrimRight(stub, "/") + "/" + backend + "/index.php?" + Encode(params)
}
