package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Converter turns model output into HTML for display.
type Converter interface {
	Convert(text string) string
}

type substitution struct {
	pattern *regexp.Regexp
	repl    string
}

// Bold runs before italic, otherwise the lazy italic match eats half of
// every bold marker. Headings keep their newline so it becomes a <br>.
var basicRules = []substitution{
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong>${1}</strong>"},
	{regexp.MustCompile(`\*(.*?)\*`), "<em>${1}</em>"},
	{regexp.MustCompile(`###### (.*?)\n`), "<h6>${1}</h6>\n"},
	{regexp.MustCompile(`##### (.*?)\n`), "<h5>${1}</h5>\n"},
	{regexp.MustCompile(`#### (.*?)\n`), "<h4>${1}</h4>\n"},
	{regexp.MustCompile(`### (.*?)\n`), "<h3>${1}</h3>\n"},
	{regexp.MustCompile(`## (.*?)\n`), "<h2>${1}</h2>\n"},
	{regexp.MustCompile(`# (.*?)\n`), "<h1>${1}</h1>\n"},
	{regexp.MustCompile(`\n`), "<br>"},
}

// Basic recognises bold, italic, headings and line breaks and nothing else.
// Lists, links, code spans and tables pass through literally.
type Basic struct{}

// NewBasic returns the fixed-substitution converter.
func NewBasic() *Basic {
	return &Basic{}
}

// Convert applies the substitutions in order. A heading on the last line
// without a trailing newline is left as is.
func (Basic) Convert(text string) string {
	for _, rule := range basicRules {
		text = rule.pattern.ReplaceAllString(text, rule.repl)
	}
	return text
}

// Blackfriday renders full markdown with blackfriday's common extensions.
type Blackfriday struct{}

// NewBlackfriday returns a blackfriday-backed converter.
func NewBlackfriday() *Blackfriday {
	return &Blackfriday{}
}

func (Blackfriday) Convert(text string) string {
	if text == "" {
		return ""
	}
	html := blackfriday.Run([]byte(text), blackfriday.WithExtensions(blackfriday.CommonExtensions))
	return strings.TrimSpace(string(html))
}

// New returns the converter registered under name, falling back to Basic.
func New(name string) Converter {
	if name == "blackfriday" {
		return NewBlackfriday()
	}
	return NewBasic()
}

var (
	paragraphPattern = regexp.MustCompile(`<p>(.*?)</p>`)
	headingPattern   = regexp.MustCompile(`<h[1-6][^>]*>(.*?)</h[1-6]>`)
	preCodePattern   = regexp.MustCompile(`<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	tagPattern       = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	tagNamePattern   = regexp.MustCompile(`</?([a-zA-Z]+)`)
	newlinesPattern  = regexp.MustCompile(`\n{3,}`)
)

// ToTelegramHTML converts markdown to Telegram-compatible HTML
func ToTelegramHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	return cleanHTMLForTelegram(html)
}

// cleanHTMLForTelegram cleans HTML to be compatible with Telegram
func cleanHTMLForTelegram(html string) string {
	// Remove wrapping <p> tags
	html = paragraphPattern.ReplaceAllString(html, "$1\n")

	// Telegram has no headings, render them bold on their own line
	html = headingPattern.ReplaceAllString(html, "<b>$1</b>\n")

	html = strings.ReplaceAll(html, "<strong>", "<b>")
	html = strings.ReplaceAll(html, "</strong>", "</b>")
	html = strings.ReplaceAll(html, "<em>", "<i>")
	html = strings.ReplaceAll(html, "</em>", "</i>")

	html = preCodePattern.ReplaceAllString(html, "<pre>$1</pre>")

	// Remove list tags but keep the content
	html = strings.ReplaceAll(html, "<ul>", "")
	html = strings.ReplaceAll(html, "</ul>", "")
	html = strings.ReplaceAll(html, "<ol>", "")
	html = strings.ReplaceAll(html, "</ol>", "")
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")

	// Remove any other HTML tags that Telegram doesn't support
	supportedTags := map[string]bool{"b": true, "i": true, "u": true, "s": true, "code": true, "pre": true, "a": true}

	html = tagPattern.ReplaceAllStringFunc(html, func(match string) string {
		tagMatch := tagNamePattern.FindStringSubmatch(match)
		if len(tagMatch) > 1 && supportedTags[tagMatch[1]] {
			return match
		}
		return ""
	})

	html = newlinesPattern.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
