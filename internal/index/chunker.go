package index

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// ChunkText splits text into overlapping chunks of roughly size characters.
// Paragraph boundaries (blank lines) are preferred split points; single
// paragraphs longer than size are hard-split.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []string
	current := ""
	for _, para := range paragraphs {
		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if len(candidate) > size && current != "" {
			chunks = append(chunks, current)
			// Seed the next chunk with the tail of the previous one
			if overlap > 0 && len(current) > overlap {
				current = strings.TrimSpace(current[len(current)-overlap:] + " " + para)
			} else {
				current = para
			}
		} else {
			current = candidate
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	// Hard-split anything still over the limit (single giant paragraphs)
	var final []string
	for _, chunk := range chunks {
		if len(chunk) <= size {
			final = append(final, chunk)
			continue
		}
		step := size - overlap
		for start := 0; start < len(chunk); start += step {
			end := start + size
			if end > len(chunk) {
				end = len(chunk)
			}
			final = append(final, chunk[start:end])
			if end == len(chunk) {
				break
			}
		}
	}

	return final
}

// ChunkID builds a deterministic identifier from position and content, so
// re-ingesting identical content produces identical IDs
func ChunkID(index int, text string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("chunk-%04d-%s", index, hex.EncodeToString(sum[:])[:8])
}
