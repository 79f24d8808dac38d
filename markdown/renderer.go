// Package markdown converts assistant-produced text into a sanitized,
// restricted HTML subset that is safe to inject into a host page. Input
// is untrusted: it may carry adversarial raw HTML alongside Markdown.
// User-authored messages must never pass through this pipeline; they are
// rendered as plain text by the session controller.
package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// headingDowngrade shifts top-level headings down: the rendering context
// is a narrow chat bubble where h1/h2 would dwarf the surrounding UI.
type headingDowngrade struct{}

func (headingDowngrade) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering && h.Level <= 2 {
			h.Level += 2
		}
		return ast.WalkContinue, nil
	})
}

// md parses GitHub-flavored Markdown; single newlines become line breaks.
// Raw HTML is passed through here on purpose so the sanitizer sees it and
// strips it together with its payload, rather than it surviving as
// escaped literal text.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(headingDowngrade{}, 100)),
	),
	goldmark.WithRendererOptions(
		ghtml.WithHardWraps(),
		ghtml.WithUnsafe(),
	),
)

// policy is the fixed allowlist the rendered HTML is reduced to. Scripts,
// styles, iframes, event handlers and non-http(s)/data schemes never
// survive, no matter how they entered the input.
var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"strong", "em", "b", "i", "code", "del", "s",
		"p", "br", "hr",
		"h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"pre", "blockquote",
	)
	p.AllowAttrs("href", "target", "rel", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height", "class", "loading").OnElements("img")
	p.AllowAttrs("class").OnElements("code", "pre")

	p.AllowURLSchemes("http", "https", "data")
	p.RequireParseableURLs(true)

	// Dangerous elements lose their text payload too, not just their tags.
	p.SkipElementsContent("script", "style", "iframe", "object", "embed", "title", "noscript")

	return p
}

// Render converts assistant text to safe HTML. It never fails: malformed
// or unterminated Markdown renders its best-effort textual content, and
// any internal error falls back to the escaped input. Empty input yields
// empty output.
func Render(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(dropDangerousElements(input)), &buf); err != nil {
		return "<p>" + html.EscapeString(input) + "</p>"
	}

	return forceEmbedAttrs(policy.Sanitize(buf.String()))
}

// dangerousElements carry executable or style payloads. They are removed
// from the input before the Markdown parse: left in place, a leading
// <script> opens a raw HTML block that swallows the Markdown following it,
// and its payload would survive the tag-level sanitize as literal text.
var dangerousElements = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"noscript": true,
}

// dropDangerousElements removes dangerous tags together with their
// content while preserving every other input byte, Markdown syntax
// included. Fenced code blocks and backtick code spans are left
// untouched: a tag mentioned there is literal text to the Markdown
// parser and must reach it intact. Anything those regions smuggle
// through is still caught by the post-parse sanitize.
func dropDangerousElements(input string) string {
	if !strings.Contains(input, "<") {
		return input
	}

	var out, prose strings.Builder
	inFence := false
	var fenceChar byte
	var fenceLen int

	flush := func() {
		out.WriteString(scrubProse(prose.String()))
		prose.Reset()
	}

	for _, line := range strings.SplitAfter(input, "\n") {
		if inFence {
			out.WriteString(line)
			if c, n := fenceMarker(line); c == fenceChar && n >= fenceLen {
				inFence = false
			}
			continue
		}
		if c, n := fenceMarker(line); n >= 3 {
			flush()
			out.WriteString(line)
			inFence = true
			fenceChar, fenceLen = c, n
			continue
		}
		prose.WriteString(line)
	}
	flush()
	return out.String()
}

// fenceMarker reports the fence character and run length starting this
// line, or (0, 0) when the line cannot open or close a code fence. Up to
// three leading spaces are allowed, per CommonMark.
func fenceMarker(line string) (byte, int) {
	i := 0
	for i < len(line) && i < 3 && line[i] == ' ' {
		i++
	}
	if i >= len(line) || (line[i] != '`' && line[i] != '~') {
		return 0, 0
	}
	c := line[i]
	n := 0
	for i+n < len(line) && line[i+n] == c {
		n++
	}
	if n < 3 {
		return 0, 0
	}
	return c, n
}

// scrubProse scrubs text outside code fences, skipping backtick code
// spans. A span opens with a run of N backticks and closes at the next
// run of exactly N; an unmatched run is plain text and gets scrubbed.
func scrubProse(text string) string {
	var out strings.Builder
	rest := text
	for {
		open := strings.IndexByte(rest, '`')
		if open < 0 {
			out.WriteString(scrub(rest))
			return out.String()
		}
		n := 1
		for open+n < len(rest) && rest[open+n] == '`' {
			n++
		}
		off := closingRun(rest[open+n:], n)
		if off < 0 {
			out.WriteString(scrub(rest[:open+n]))
			rest = rest[open+n:]
			continue
		}
		end := open + n + off + n
		out.WriteString(scrub(rest[:open]))
		out.WriteString(rest[open:end])
		rest = rest[end:]
	}
}

// closingRun returns the offset of the first backtick run of exactly
// length n in s, or -1.
func closingRun(s string, n int) int {
	for i := 0; i < len(s); {
		j := strings.IndexByte(s[i:], '`')
		if j < 0 {
			return -1
		}
		i += j
		run := 0
		for i+run < len(s) && s[i+run] == '`' {
			run++
		}
		if run == n {
			return i
		}
		i += run
	}
	return -1
}

func scrub(input string) string {
	if !strings.Contains(input, "<") {
		return input
	}

	var out strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(input))
	skipUntil := ""
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return out.String()
		}

		name, _ := z.TagName()
		tag := string(name)

		if skipUntil != "" {
			if tt == xhtml.EndTagToken && tag == skipUntil {
				skipUntil = ""
			}
			continue
		}

		if (tt == xhtml.StartTagToken || tt == xhtml.SelfClosingTagToken) && dangerousElements[tag] {
			if tt == xhtml.StartTagToken {
				skipUntil = tag
			}
			continue
		}
		if tt == xhtml.EndTagToken && dangerousElements[tag] {
			continue
		}

		out.Write(z.Raw())
	}
}

// forceEmbedAttrs applies the post-sanitize pass: every anchor opens in a
// new context without an opener reference, every image loads lazily,
// regardless of what the input specified.
func forceEmbedAttrs(fragment string) string {
	contextNode := &xhtml.Node{Type: xhtml.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := xhtml.ParseFragment(strings.NewReader(fragment), contextNode)
	if err != nil {
		return fragment
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		forceNodeAttrs(n)
		if err := xhtml.Render(&buf, n); err != nil {
			return fragment
		}
	}
	return buf.String()
}

func forceNodeAttrs(n *xhtml.Node) {
	if n.Type == xhtml.ElementNode {
		switch n.DataAtom {
		case atom.A:
			setAttr(n, "target", "_blank")
			setAttr(n, "rel", "noopener noreferrer")
		case atom.Img:
			setAttr(n, "loading", "lazy")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forceNodeAttrs(c)
	}
}

func setAttr(n *xhtml.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, xhtml.Attribute{Key: key, Val: value})
}
