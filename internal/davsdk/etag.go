package davsdk

import "strings"

// UnquoteETag turns a header/property value like `W/"abc"` into `abc`.
// Stored tags are always unquoted; they are opaque and compared verbatim.
func UnquoteETag(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "W/")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

// QuoteETag formats a stored tag for If-Match.
func QuoteETag(eTag string) string {
	return `"` + strings.ReplaceAll(eTag, `"`, `\"`) + `"`
}
