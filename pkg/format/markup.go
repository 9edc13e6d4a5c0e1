package format

import (
	"html"
	"regexp"
)

// markupTag matches pango-style tags such as <span font="Nerd">...</span>.
var markupTag = regexp.MustCompile(`</?[a-zA-Z][^<>]*>`)

// StripMarkup removes pango/HTML tags, keeping their inner text, and
// unescapes entities. Hosts that cannot render markup (plain terminals,
// starship) use this; waybar receives the markup as is.
func StripMarkup(s string) string {
	return html.UnescapeString(markupTag.ReplaceAllString(s, ""))
}
