package textwell

import (
	"encoding/json"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// Encode percent-encodes s as a URI component: ASCII letters, digits and
// - _ . ! ~ * ' ( ) are kept, every other byte of the UTF-8 form becomes %XX.
// This is what Textwell's decoder expects; url.QueryEscape differs on
// space and on ! ' ( ) *.
func Encode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// WriteURL builds the URL for a write-text call.
func WriteURL(m *ModeMapping, mode Mode, text string) string {
	return m.URLFor(mode) + "?text=" + Encode(text)
}

// Action describes a Textwell action installed through importAction.
type Action struct {
	Title     string
	Source    string
	IconTitle string
	Desc      string
}

// BridgeAction returns the "Send to MCP" action, which hands the current
// document text to the bridge page.
func BridgeAction(bridgeURL string) Action {
	target, _ := json.Marshal(strings.TrimRight(bridgeURL, "/") + "/?text=")
	source := "(function() {\n" +
		"  const text = encodeURIComponent(T.text);\n" +
		"  T('urlScheme', {\n" +
		"    url: " + string(target) + " + text\n" +
		"  });\n" +
		"})();"
	return Action{
		Title:     "Send to MCP",
		Source:    source,
		IconTitle: "upload",
		Desc:      "Send text to MCP server",
	}
}

// ImportActionURL builds the importAction URL with every field encoded on
// its own.
func ImportActionURL(m *ModeMapping, a Action) string {
	fields := [][2]string{
		{"title", a.Title},
		{"source", a.Source},
		{"iconTitle", a.IconTitle},
		{"desc", a.Desc},
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f[0] + "=" + Encode(f[1])
	}
	return m.ImportAction() + "?" + strings.Join(parts, "&")
}
