// Package scrape turns fetched corporate pages into plaintext and harvests
// the follow-up links worth crawling from a company homepage.
package scrape

import (
	"regexp"
	"strings"
)

var (
	scriptRe   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptRe = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	commentRe  = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe      = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe    = regexp.MustCompile(`[ \t\x{3000}]+`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// StripHTML reduces an HTML document to readable plaintext. Script, style and
// comment blocks go first so their contents never leak into the text.
func StripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = noscriptRe.ReplaceAllString(text, " ")
	text = commentRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = decodeEntities(text)
	text = spaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ExtractTitle returns the <title> text, or "" when the page has none.
func ExtractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(decodeEntities(tagRe.ReplaceAllString(m[1], " ")))
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&yen;", "¥",
	"&copy;", "©",
	"&mdash;", "—",
	"&ndash;", "-",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
