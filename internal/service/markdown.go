package service

import (
	"bytes"

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
	markdownSanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown 渲染 Markdown 并做 UGC 级别的 HTML 清洗；渲染失败时返回转义后的原文。
func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(src), &buf); err != nil {
		return markdownSanitizer.Sanitize(src)
	}
	return string(markdownSanitizer.SanitizeBytes(buf.Bytes()))
}
