package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(""))
	assert.Equal(t, "", Render("   \n  "))
}

func TestRender_BasicMarkdown(t *testing.T) {
	out := Render("**bold** and *italic* and `code`")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<em>italic</em>")
	assert.Contains(t, out, "<code>code</code>")
}

func TestRender_HeadingsAreDowngraded(t *testing.T) {
	out := Render("# Top\n\n## Second\n\n### Third")
	assert.NotContains(t, out, "<h1")
	assert.NotContains(t, out, "<h2")
	assert.Contains(t, out, "<h3>Top</h3>")
	assert.Contains(t, out, "<h4>Second</h4>")
	assert.Contains(t, out, "<h5>Third</h5>")
}

func TestRender_SingleNewlineBecomesLineBreak(t *testing.T) {
	out := Render("line one\nline two")
	assert.Contains(t, out, "<br")
}

func TestRender_GFMStrikethrough(t *testing.T) {
	out := Render("~~gone~~")
	assert.Contains(t, out, "<del>gone</del>")
}

func TestRender_ScriptIsStrippedWithPayload(t *testing.T) {
	out := Render("<script>alert(1)</script>**bold**")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert")
}

func TestRender_TagMentionInInlineCodeSurvives(t *testing.T) {
	out := Render("Use the `<script>` tag carefully")
	assert.Contains(t, out, "<code>&lt;script&gt;</code>")
	assert.Contains(t, out, "tag carefully")
}

func TestRender_TagMentionInCodeFenceSurvives(t *testing.T) {
	out := Render("```\n<script>alert(1)</script>\n```")
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, out, "<script>")
}

func TestRender_UnmatchedBacktickStillScrubbed(t *testing.T) {
	out := Render("broken ` tick <script>alert(1)</script>**bold**")
	assert.NotContains(t, out, "alert")
	assert.Contains(t, out, "<strong>bold</strong>")
}

func TestRender_JavascriptSchemeNeverSurvives(t *testing.T) {
	for _, input := range []string{
		"[a](javascript:alert(1))",
		`<a href="javascript:alert(1)">a</a>`,
		"[a](JAVASCRIPT:alert(1))",
	} {
		out := Render(input)
		assert.NotContains(t, strings.ToLower(out), "javascript:", "input %q", input)
	}
}

func TestRender_EmbeddedAllowedHTMLSurvives(t *testing.T) {
	out := Render("before <b>kept</b> after")
	assert.Contains(t, out, "<b>kept</b>")
}

func TestRender_EventHandlersAndStylesStripped(t *testing.T) {
	out := Render(`<img src="https://example.com/x.png" onerror="alert(1)"><style>body{}</style>`)
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "<style")
	assert.NotContains(t, out, "body{}")
}

func TestRender_AnchorsForcedToNewTab(t *testing.T) {
	out := Render(`[docs](https://example.com/docs) and <a href="https://example.com" target="_self" rel="opener">x</a>`)
	// Both the markdown link and the literal anchor get the forced pair.
	assert.Equal(t, 2, strings.Count(out, `target="_blank"`))
	assert.Equal(t, 2, strings.Count(out, `rel="noopener noreferrer"`))
	assert.NotContains(t, out, `target="_self"`)
}

func TestRender_ImagesForcedLazy(t *testing.T) {
	out := Render(`![alt](https://example.com/a.png)`)
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `src="https://example.com/a.png"`)
}

func TestRender_MalformedConstructsDoNotPanic(t *testing.T) {
	for _, input := range []string{
		"**unclosed bold",
		"[unclosed link](https://example.com",
		"```\nunclosed fence",
		"<script>never closed",
		"<<<>>>",
	} {
		assert.NotPanics(t, func() { _ = Render(input) }, "input %q", input)
	}
}

func TestRender_UnclosedBoldKeepsText(t *testing.T) {
	out := Render("**unclosed bold")
	assert.Contains(t, out, "unclosed bold")
}

func TestRender_TablesReduceToText(t *testing.T) {
	// Tables parse as GFM but are outside the allowed tag subset; the
	// cell text must still survive.
	out := Render("| a | b |\n|---|---|\n| c | d |")
	assert.NotContains(t, out, "<table")
	assert.Contains(t, out, "c")
}
