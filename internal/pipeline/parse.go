package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	docStartMarker = "<!doctype html"
	docEndMarker   = "</html>"

	// maxLineBytes bounds a single corpus line; article bodies routinely
	// exceed bufio.Scanner's default 64 KiB.
	maxLineBytes = 16 * 1024 * 1024
)

// CountDocuments counts documents in the corpus stream by matching the
// case-insensitive document start marker. Every document counts, including
// ones a later parse pass drops, so that IDF's N reflects the whole corpus.
func CountDocuments(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	count := 0
	for scanner.Scan() {
		if strings.Contains(strings.ToLower(scanner.Text()), docStartMarker) {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scanning corpus: %w", err)
	}
	return count, nil
}

// ParseDocuments splits the corpus stream into whole HTML documents, extracts
// each document's identifier and visible text, and merges fragments that
// share a docid by concatenating them in the order they were seen. Documents
// without the identifier attribute, or with a non-integer identifier, are
// dropped rather than failing the run.
func ParseDocuments(r io.Reader, docidAttr string) ([]Document, error) {
	logger := slog.Default().With("component", "pipeline-parse")
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		raw     strings.Builder
		inDoc   bool
		order   []int
		byDocID = make(map[int][]string)
		dropped int
	)

	finish := func() {
		defer raw.Reset()
		docID, text, ok := parseDocument(raw.String(), docidAttr)
		if !ok {
			dropped++
			return
		}
		if _, seen := byDocID[docID]; !seen {
			order = append(order, docID)
		}
		byDocID[docID] = append(byDocID[docID], text)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(strings.ToLower(line), docStartMarker) {
			raw.Reset()
			inDoc = true
		}
		if !inDoc {
			continue
		}
		raw.WriteString(line)
		raw.WriteByte('\n')
		if strings.Contains(strings.ToLower(line), docEndMarker) {
			finish()
			inDoc = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}

	docs := make([]Document, 0, len(order))
	for _, docID := range order {
		docs = append(docs, Document{
			DocID: docID,
			Text:  strings.Join(byDocID[docID], " "),
		})
	}
	if dropped > 0 {
		logger.Warn("documents dropped during parse", "dropped", dropped, "kept", len(docs))
	}
	return docs, nil
}

// parseDocument extracts (docid, text) from one raw HTML document. The docid
// comes from the first <meta> element carrying the identifier attribute.
func parseDocument(rawHTML, docidAttr string) (int, string, bool) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return 0, "", false
	}

	idValue, found := findMetaAttr(root, docidAttr)
	if !found {
		return 0, "", false
	}
	docID, err := strconv.Atoi(strings.TrimSpace(idValue))
	if err != nil || docID <= 0 {
		return 0, "", false
	}

	var b strings.Builder
	collectText(root, &b)
	// Collapse all whitespace runs (including embedded newlines) to single
	// spaces.
	text := strings.Join(strings.Fields(b.String()), " ")
	return docID, text, true
}

// findMetaAttr walks the tree for a <meta> element with the given attribute
// key and returns its value.
func findMetaAttr(n *html.Node, attr string) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "meta" {
		for _, a := range n.Attr {
			if a.Key == attr {
				return a.Val, true
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if v, ok := findMetaAttr(child, attr); ok {
			return v, ok
		}
	}
	return "", false
}

// collectText appends the document's visible text nodes, space-separated,
// skipping script and style subtrees.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}
