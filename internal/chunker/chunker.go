// Package chunker splits normalized text into overlapping windows sized by
// strategy. Splitting is deterministic for identical input and strategy,
// which is what makes re-ingestion idempotent downstream.
package chunker

import (
	"strings"
)

// Strategy selects window size and overlap, in characters.
type Strategy string

const (
	Small    Strategy = "small"    // 500 / 50
	Balanced Strategy = "balanced" // 1000 / 100 (default)
	Big      Strategy = "big"      // 2000 / 200
)

// Parse maps a strategy name to a Strategy, defaulting to Balanced for
// unknown or empty names.
func Parse(name string) Strategy {
	switch Strategy(name) {
	case Small, Balanced, Big:
		return Strategy(name)
	default:
		return Balanced
	}
}

func (s Strategy) sizes() (size, overlap int) {
	switch s {
	case Small:
		return 500, 50
	case Big:
		return 2000, 200
	default:
		return 1000, 100
	}
}

// Split breaks text into overlapping windows under the strategy's size,
// preferring paragraph breaks, then sentence ends, then word boundaries,
// before falling back to a hard character cut. No returned span is empty
// after trimming; spans cover the source in order with overlap-sized
// duplication at the seams.
func Split(text string, strategy Strategy) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size, overlap := strategy.sizes()
	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = breakPoint(runes, start, end)
		}

		span := strings.TrimSpace(string(runes[start:end]))
		if span != "" {
			chunks = append(chunks, span)
		}

		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end // window shrank below the overlap; keep moving
		}
		start = next
	}

	return chunks
}

// breakPoint finds where to cut a window ending at the hard limit `end`.
// It scans backward no further than the window midpoint so a pathological
// boundary never halves throughput.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2

	// Paragraph break: cut after the blank line.
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}

	// Sentence end: punctuation followed by whitespace, cut after it.
	for i := end - 1; i > floor; i-- {
		if isSentenceEnd(runes[i-1]) && isSpace(runes[i]) {
			return i + 1
		}
	}

	// Word boundary.
	for i := end - 1; i > floor; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}

	// Hard cut.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
