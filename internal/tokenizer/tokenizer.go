// Package tokenizer turns normalized document text into index terms. The same
// code runs at index time and at query time so that both sides agree on what
// a term is: lowercase, alphanumeric only, stopwords removed.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Stopwords is a set of terms excluded from the index entirely.
type Stopwords map[string]struct{}

// LoadStopwords reads a stopword file with one word per line. Blank lines are
// ignored.
func LoadStopwords(path string) (Stopwords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopword file: %w", err)
	}
	defer f.Close()

	stop := make(Stopwords)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		stop[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopword file: %w", err)
	}
	return stop, nil
}

// Contains reports whether word is a stopword.
func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Tokenize lowercases text, strips every character outside [a-z0-9 ], splits
// on whitespace, and drops stopwords. One term is emitted per surviving
// occurrence, so repeated words appear repeatedly.
func Tokenize(text string, stop Stopwords) []string {
	cleaned := normalize(text)
	fields := strings.Fields(cleaned)
	terms := make([]string, 0, len(fields))
	for _, term := range fields {
		if stop.Contains(term) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// normalize lowercases and removes characters outside [a-z0-9 ]. Stripped
// characters are deleted, not replaced with spaces, so "state-of-the-art"
// becomes one token.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}
