package docpipe

import (
	"bytes"
	"os"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	mdtable "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlSanitizer strips scripts, styles, event handlers and other active
// content before conversion. Uploaded HTML is untrusted input.
var htmlSanitizer = bluemonday.UGCPolicy()

// extractHTMLFile extracts text from an HTML file: sanitize, pull the
// <title>, convert the body to markdown, then section the markdown.
func extractHTMLFile(path string) (string, []Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	title := findHTMLTitle(doc)

	clean := htmlSanitizer.SanitizeBytes(data)

	conv := htmltomd.NewConverter(
		htmltomd.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			mdtable.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(string(clean))
	if err != nil {
		return "", nil, err
	}

	mdTitle, sections := markdownSections(md)
	if title == "" {
		title = mdTitle
	}
	return title, sections, nil
}

// findHTMLTitle walks the parse tree for the <title> element text.
func findHTMLTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findHTMLTitle(c); title != "" {
			return title
		}
	}
	return ""
}
