// Package preview rewrites Marketo placeholder tokens in exported HTML into
// literal text so a template can be eyeballed in a browser outside the
// vendor's renderer. It is a pure consumer of exported content; the export
// pipeline never depends on it.
package preview

import (
	"regexp"
	"strings"
)

// placeholder matches {{lead.First Name}}, {{system.unsubscribeLink}},
// {{company.Name:default=Acme}}, {{my.footer-text}} and friends.
var placeholder = regexp.MustCompile(`\{\{\s*(system|lead|company|my)\.([^}]+?)\s*\}\}`)

// systemTokens maps well-known system placeholders to display text.
var systemTokens = map[string]string{
	"viewaswebpagelink":   "[View as Web Page]",
	"unsubscribelink":     "[Unsubscribe]",
	"forwardtofriendlink": "[Forward to Friend]",
}

// Render substitutes every known placeholder with a readable literal:
// system links become bracketed labels, personalization tokens use their
// default value when one is declared and a bracketed field name otherwise.
func Render(html string) string {
	return placeholder.ReplaceAllStringFunc(html, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		kind, name := groups[1], groups[2]

		// {{lead.First Name:default=Friend}} renders its default.
		if idx := strings.Index(name, ":default="); idx >= 0 {
			return strings.TrimSpace(name[idx+len(":default="):])
		}

		if kind == "system" {
			if label, ok := systemTokens[strings.ToLower(name)]; ok {
				return label
			}
		}
		return "[" + strings.TrimSpace(name) + "]"
	})
}
