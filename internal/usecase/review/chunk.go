package review

import (
	"regexp"
	"strings"
)

// MinChunkLength drops fragments such as stray headings and signature lines.
const MinChunkLength = 20

// sectionStart matches numbered sections (1. / 1.1 / 1.1.1), ARTICLE headings
// and ALL CAPS headings at the start of a line.
var sectionStart = regexp.MustCompile(
	`(?:^|\n)(?:\d+(?:\.\d+)*\.?\s+|ARTICLE\s+[IVXLCDM\d]+\.?\s+|[A-Z][A-Z\s]{2,}(?:\n|\.))`,
)

// Chunk is one clause-sized span of a contract.
type Chunk struct {
	Text string `json:"text"`
	// Position is the 0-based index among kept chunks.
	Position int    `json:"position"`
	Heading  string `json:"heading"`
}

// Split cuts contract text at section markers. Text without markers is one
// chunk. Chunks shorter than MinChunkLength are dropped.
func Split(text string) []Chunk {
	marks := sectionStart.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		t := strings.TrimSpace(text)
		if len(t) < MinChunkLength {
			return nil
		}
		return []Chunk{{Text: t}}
	}

	var chunks []Chunk
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		t := strings.TrimSpace(text[m[0]:end])
		if len(t) < MinChunkLength {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:     t,
			Position: len(chunks),
			Heading:  strings.TrimRight(strings.TrimSpace(text[m[0]:m[1]]), "."),
		})
	}
	return chunks
}
