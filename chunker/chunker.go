// Package chunker splits documents into bounded segments along sentence
// boundaries.
//
// Lengths are counted in runes. A document no longer than the maximum is
// emitted whole. Longer documents are cut at the first strong delimiter
// (。！？.!?) found past the minimum length and outside any “quoted” span,
// else at the last weak delimiter (,，;；) of the window, else at the maximum
// length. Delimiters stay with the chunk they end. Concatenating the chunks
// of a document reproduces it exactly.
package chunker

import "iter"

const (
	openQuote  = '“'
	closeQuote = '”'
)

func isStrong(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

func isWeak(r rune) bool {
	switch r {
	case ',', '，', ';', '；':
		return true
	}
	return false
}

// Split returns the chunks of all documents in order.
func Split(documents []string, minSize, maxSize int) []string {
	var chunks []string
	for c := range Chunks(documents, minSize, maxSize) {
		chunks = append(chunks, c)
	}
	return chunks
}

// Chunks yields the chunks of all documents in order.
func Chunks(documents []string, minSize, maxSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, doc := range documents {
			for c := range splitDocument(doc, minSize, maxSize) {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// splitDocument yields the chunks of one document.
func splitDocument(doc string, minSize, maxSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		text := []rune(doc)
		n := len(text)
		if n <= maxSize {
			yield(doc)
			return
		}
		if maxSize <= 0 {
			// Nothing fits; the whole document is one forced chunk.
			yield(doc)
			return
		}

		start := 0
		for start < n {
			limit := min(start+maxSize, n)
			quotes := 0
			fallback := -1
			split := -1

			for i := start; i < limit; i++ {
				r := text[i]
				switch {
				case r == openQuote:
					quotes++
				case r == closeQuote && quotes > 0:
					quotes--
				}
				if i < start+minSize || quotes != 0 {
					continue
				}
				if isStrong(r) {
					split = i + 1
					break
				}
				if isWeak(r) {
					fallback = i
				}
			}

			switch {
			case split >= 0:
			case limit == n:
				split = n
			case fallback >= 0:
				split = fallback + 1
			default:
				split = limit
			}

			if !yield(string(text[start:split])) {
				return
			}
			start = split
		}
	}
}
