// Package fingerprint derives deterministic cache keys from step text,
// page location, and DOM snapshots.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Key returns the hex-encoded SHA-256 digest of
// description + "|" + url + "|" + dom. The DOM snapshot is hashed whole;
// truncating it would widen false-positive cache hits. An error here means
// the caller must treat the lookup as a miss, never abort the run.
func Key(description, url, dom string) (string, error) {
	h := sha256.New()
	for _, part := range []string{description, "|", url, "|", dom} {
		if _, err := h.Write([]byte(part)); err != nil {
			return "", fmt.Errorf("fingerprint write: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Normalize collapses insignificant whitespace and drops comments from an
// HTML snapshot so that cosmetically different but structurally equal
// snapshots hash to the same key. Input that fails to parse is returned
// with plain whitespace collapsing, since a stable wrong normalization is
// still deterministic.
func Normalize(dom string) string {
	node, err := html.Parse(strings.NewReader(dom))
	if err != nil {
		return strings.Join(strings.Fields(dom), " ")
	}
	var b strings.Builder
	renderNormalized(&b, node)
	return b.String()
}

func renderNormalized(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		text := strings.Join(strings.Fields(n.Data), " ")
		if text != "" {
			b.WriteString(text)
		}
	case html.ElementNode:
		b.WriteByte('<')
		b.WriteString(n.Data)
		for _, attr := range n.Attr {
			b.WriteByte(' ')
			b.WriteString(attr.Key)
			b.WriteString(`="`)
			b.WriteString(attr.Val)
			b.WriteByte('"')
		}
		b.WriteByte('>')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNormalized(b, c)
	}
	if n.Type == html.ElementNode {
		b.WriteString("</")
		b.WriteString(n.Data)
		b.WriteByte('>')
	}
}
