// Package ingest normalizes uploaded artifacts (rich-text feedback, notes,
// PDF self-assessments) into plain text ready for embedding.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Content kinds accepted by the document endpoint.
const (
	KindText = "text"
	KindHTML = "html"
	KindPDF  = "pdf"
)

// Flatten converts content of the given kind to plain text. Plain text passes
// through with whitespace normalization only.
func Flatten(kind string, content []byte) (string, error) {
	switch kind {
	case KindText, "":
		return normalizeWhitespace(string(content)), nil
	case KindHTML:
		return FlattenHTML(string(content)), nil
	case KindPDF:
		return ExtractPDF(content)
	default:
		return "", fmt.Errorf("unsupported content kind %q", kind)
	}
}

// FlattenHTML strips markup from rich-text content, keeping only text nodes.
// The HR front end stores feedback bodies as HTML fragments; embedding and
// prompt insertion both want plain text. Unparseable input is returned as-is.
func FlattenHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return normalizeWhitespace(s)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return normalizeWhitespace(sb.String())
}

// ExtractPDF extracts the plain text of an uploaded PDF document.
func ExtractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	text, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return normalizeWhitespace(string(text)), nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
