package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// chunkLine is the terminal fallback: fixed-size line windows with
// configured overlap on each side. Overlap-only regions are deduplicated
// against every previously emitted chunk's content hash, and total overlap
// is capped at maxOverlapRatio of the original line count.
func chunkLine(content, language, relPath string, bounds Bounds) []CodeChunk {
	lines := strings.Split(content, "\n")
	total := len(lines)
	if total == 0 {
		return nil
	}

	maxOverlapLines := int(float64(total) * bounds.MaxOverlapRatio)
	overlap := bounds.OverlapSize
	if overlap > maxOverlapLines {
		overlap = maxOverlapLines
	}
	if overlap < 0 {
		overlap = 0
	}

	seen := make(map[string]struct{})
	var chunks []CodeChunk

	step := bounds.MaxLinesPerChunk
	if step <= 0 {
		step = total
	}

	for start := 0; start < total; start += step {
		windowStart := start - overlap
		if windowStart < 0 {
			windowStart = 0
		}
		end := start + step
		if end > total {
			end = total
		}
		windowEnd := end + overlap
		if windowEnd > total {
			windowEnd = total
		}

		text := strings.Join(lines[windowStart:windowEnd], "\n")
		hash := hashText(text)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		chunks = append(chunks, CodeChunk{
			RelPath:   relPath,
			Language:  language,
			Content:   text,
			StartLine: windowStart + 1,
			EndLine:   windowEnd,
			ChunkType: "line",
			Strategy:  StrategyLine,
		})
	}

	for i := range chunks {
		chunks[i].ID = newID(relPath, chunks[i].StartLine, chunks[i].EndLine, chunks[i].Content)
	}
	return chunks
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
