package service

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	htmlSanitizer = bluemonday.UGCPolicy()
	plainText     = bluemonday.StrictPolicy()
)

// RenderMarkdown 把 Markdown 渲染为经过清洗的 HTML
func RenderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return htmlSanitizer.Sanitize(content)
	}
	return string(htmlSanitizer.SanitizeBytes(buf.Bytes()))
}

// StripMarkup 去掉全部 HTML 标签，用于公开的反思与评论
func StripMarkup(text string) string {
	return strings.TrimSpace(plainText.Sanitize(text))
}
