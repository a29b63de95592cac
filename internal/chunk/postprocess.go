package chunk

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// postProcess applies the filter, rebalance, and deduplicate passes shared
// by every strategy.
func postProcess(chunks []CodeChunk, bounds Bounds, logf func(format string, args ...any)) []CodeChunk {
	chunks = filterUndersized(chunks, bounds, logf)
	chunks = rebalanceOversized(chunks, bounds)
	chunks = deduplicate(chunks, bounds)
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = newID(chunks[i].RelPath, chunks[i].StartLine, chunks[i].EndLine, chunks[i].Content)
		}
	}
	return chunks
}

// filterUndersized merges chunks below minChunkSize into a neighbor,
// discarding ones that remain isolated after both merge attempts.
func filterUndersized(chunks []CodeChunk, bounds Bounds, logf func(string, ...any)) []CodeChunk {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	result := make([]CodeChunk, 0, len(chunks))
	for i := 0; i < len(chunks); i++ {
		c := chunks[i]
		if len(c.Content) >= bounds.MinChunkSize {
			result = append(result, c)
			continue
		}

		if len(result) > 0 {
			result[len(result)-1] = mergeChunks(result[len(result)-1], c)
			continue
		}

		if i+1 < len(chunks) {
			chunks[i+1] = mergeChunks(c, chunks[i+1])
			continue
		}

		logf("chunk: discarding isolated undersized chunk %s:%d-%d", c.RelPath, c.StartLine, c.EndLine)
	}
	return result
}

func mergeChunks(a, b CodeChunk) CodeChunk {
	merged := a
	merged.Content = a.Content + "\n" + b.Content
	if b.EndLine > merged.EndLine {
		merged.EndLine = b.EndLine
	}
	if b.StartLine < merged.StartLine {
		merged.StartLine = b.StartLine
	}
	merged.Complexity = a.Complexity + b.Complexity
	if a.ChunkType != b.ChunkType {
		merged.ChunkType = "merged"
	}
	return merged
}

var semanticBoundary = regexp.MustCompile(`\n\s*\n`)

// rebalanceOversized splits chunks above maxChunkSize at the nearest blank
// line (or, failing that, the nearest line boundary).
func rebalanceOversized(chunks []CodeChunk, bounds Bounds) []CodeChunk {
	var result []CodeChunk
	for _, c := range chunks {
		if len(c.Content) <= bounds.MaxChunkSize {
			result = append(result, c)
			continue
		}
		result = append(result, splitAtBoundary(c, bounds)...)
	}
	return result
}

func splitAtBoundary(c CodeChunk, bounds Bounds) []CodeChunk {
	boundaries := semanticBoundary.FindAllStringIndex(c.Content, -1)
	splitAt := -1
	for _, b := range boundaries {
		if b[0] >= bounds.MinChunkSize && b[0] <= bounds.MaxChunkSize {
			splitAt = b[0]
		}
	}
	if splitAt < 0 {
		lines := strings.Split(c.Content, "\n")
		mid := len(lines) / 2
		splitAt = len(strings.Join(lines[:mid], "\n"))
	}
	if splitAt <= 0 || splitAt >= len(c.Content) {
		return []CodeChunk{c}
	}

	first := c
	first.Content = strings.TrimRight(c.Content[:splitAt], "\n")
	firstLines := strings.Count(first.Content, "\n") + 1
	first.EndLine = c.StartLine + firstLines - 1

	second := c
	second.Content = strings.TrimLeft(c.Content[splitAt:], "\n")
	second.StartLine = first.EndLine + 1

	out := []CodeChunk{first}
	if len(second.Content) > bounds.MaxChunkSize {
		out = append(out, splitAtBoundary(second, bounds)...)
	} else {
		out = append(out, second)
	}
	return out
}

const defaultSimilarityThreshold = 0.8

var commentPattern = regexp.MustCompile(`//[^\n]*|/\*[\s\S]*?\*/|#[^\n]*`)
var whitespacePattern = regexp.MustCompile(`\s+`)

func normalizeForComparison(content string) string {
	stripped := commentPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
}

// deduplicate merges or drops chunks whose normalized content similarity
// meets similarityThreshold: adjacent/overlapping pairs are merged, distant
// pairs drop the later chunk.
func deduplicate(chunks []CodeChunk, bounds Bounds) []CodeChunk {
	threshold := bounds.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}

	kept := make([]CodeChunk, 0, len(chunks))
	normalized := make([]string, 0, len(chunks))

	for _, c := range chunks {
		norm := normalizeForComparison(c.Content)
		dupIdx := -1
		for i, existing := range normalized {
			if similarity(norm, existing) >= threshold {
				dupIdx = i
				break
			}
		}
		if dupIdx < 0 {
			kept = append(kept, c)
			normalized = append(normalized, norm)
			continue
		}

		adjacent := c.StartLine <= kept[dupIdx].EndLine+1
		if adjacent {
			kept[dupIdx] = mergeChunks(kept[dupIdx], c)
			normalized[dupIdx] = normalizeForComparison(kept[dupIdx].Content)
		}
		// else: later chunk is dropped entirely
	}
	return kept
}

func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}
