// Package textnorm normalises identifiers and user-supplied text before storage.
package textnorm

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements are elements whose text content is discarded.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
}

// blockElements break the text onto a new line.
var blockElements = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "blockquote": true,
	"pre": true, "tr": true, "section": true, "article": true,
}

// StripHTML removes markup from user text, keeping visible text, image alt text and line
// breaks. Runs of spaces collapse to one and consecutive blank lines to one.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return tidy(s)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidy(b.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if skipElements[tag] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if tag == "br" || blockElements[tag] {
				b.WriteByte('\n')
			}
			if tag == "img" && hasAttr && skipDepth == 0 {
				for {
					key, val, more := z.TagAttr()
					if string(key) == "alt" && len(val) > 0 {
						b.Write(val)
					}
					if !more {
						break
					}
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] && skipDepth > 0 {
				skipDepth--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}

		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
