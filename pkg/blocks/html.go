package blocks

import (
	"strings"

	"golang.org/x/net/html"
)

// StartTags returns the upper-cased names of the start tags in fragment, in
// document order. Closing tags, text, and comments are skipped.
func StartTags(fragment string) []string {
	var tags []string

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tags = append(tags, strings.ToUpper(string(name)))
		default:
		}
	}
}
