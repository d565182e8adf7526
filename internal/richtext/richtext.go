// Package richtext flattens the HTML found in feed descriptions into the
// line-oriented plain text that the description heuristics expect.
package richtext

import (
	"html"
	"regexp"
	"strings"
)

// Converter turns HTML fragments into plain text
type Converter struct {
	// Pre-compiled regex patterns
	linkPattern      *regexp.Regexp
	tagPattern       *regexp.Regexp
	blankRunPattern  *regexp.Regexp
	trailingSpacePat *regexp.Regexp
}

// NewConverter creates a converter with compiled patterns
func NewConverter() *Converter {
	return &Converter{
		linkPattern:      regexp.MustCompile(`(?is)<a\s+(?:[^>]*?\s+)?href="([^"]+)"[^>]*>(.*?)</a>`),
		tagPattern:       regexp.MustCompile(`<(/?)([^>]+)>`),
		blankRunPattern:  regexp.MustCompile(`\n{3,}`),
		trailingSpacePat: regexp.MustCompile(`[ \t]+\n`),
	}
}

// LooksLikeHTML reports whether text carries markup worth converting.
func LooksLikeHTML(text string) bool {
	return strings.Contains(text, "<") && strings.Contains(text, ">")
}

// ToPlain converts HTML to plain text. Block tags become line breaks, list
// items become bullet lines and links keep their target in parentheses.
// Text without markup only has its entities decoded.
func (c *Converter) ToPlain(text string) string {
	if !LooksLikeHTML(text) {
		return html.UnescapeString(text)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	// Links first, before their tags are stripped
	text = c.linkPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := c.linkPattern.FindStringSubmatch(match)
		url := sub[1]
		label := strings.TrimSpace(c.tagPattern.ReplaceAllString(sub[2], ""))
		if label == "" || label == url {
			return url
		}
		return label + " (" + url + ")"
	})

	text = c.tagPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := c.tagPattern.FindStringSubmatch(match)
		closing := sub[1] == "/"
		parts := strings.Fields(sub[2])
		if len(parts) == 0 {
			return ""
		}
		switch strings.ToLower(strings.TrimRight(parts[0], "/")) {
		case "br":
			return "\n"
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			if closing {
				return "\n\n"
			}
			return ""
		case "ul", "ol":
			if closing {
				return ""
			}
			return "\n"
		case "li":
			if closing {
				return "\n"
			}
			return "• "
		default:
			return ""
		}
	})

	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = c.trailingSpacePat.ReplaceAllString(text, "\n")
	text = c.blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
