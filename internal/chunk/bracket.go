package chunk

import "strings"

// chunkBracket walks the content tracking brace depth and closes a chunk
// when depth returns to zero within [minChunkSize, maxChunkSize], or when a
// hard overflow of 1.5x maxChunkSize is hit regardless of depth.
func chunkBracket(content, language, relPath string, bounds Bounds) []CodeChunk {
	lines := strings.Split(content, "\n")
	hardLimit := int(float64(bounds.MaxChunkSize) * 1.5)

	var chunks []CodeChunk
	var buf []string
	depth := 0
	startLine := 1
	size := 0
	inString := byte(0)
	inLineComment := false
	inBlockComment := false

	flush := func(endLine int) {
		if len(buf) == 0 {
			return
		}
		text := strings.Join(buf, "\n")
		chunks = append(chunks, CodeChunk{
			RelPath:   relPath,
			Language:  language,
			Content:   text,
			StartLine: startLine,
			EndLine:   endLine,
			ChunkType: "code_block",
			Strategy:  StrategyBracket,
		})
		buf = nil
		size = 0
	}

	for i, line := range lines {
		lineNum := i + 1
		buf = append(buf, line)
		size += len(line) + 1
		inLineComment = false

		for j := 0; j < len(line); j++ {
			ch := line[j]
			switch {
			case inBlockComment:
				if ch == '*' && j+1 < len(line) && line[j+1] == '/' {
					inBlockComment = false
					j++
				}
			case inLineComment:
				// rest of line ignored
			case inString != 0:
				if ch == '\\' {
					j++
				} else if ch == inString {
					inString = 0
				}
			case ch == '"' || ch == '\'' || ch == '`':
				inString = ch
			case ch == '/' && j+1 < len(line) && line[j+1] == '/':
				inLineComment = true
			case ch == '/' && j+1 < len(line) && line[j+1] == '*':
				inBlockComment = true
				j++
			case ch == '{':
				depth++
			case ch == '}':
				if depth > 0 {
					depth--
				}
			}
		}

		if len(buf) == 1 {
			startLine = lineNum
		}

		closedAtZero := depth == 0 && size >= bounds.MinChunkSize && size <= bounds.MaxChunkSize
		hardOverflow := size >= hardLimit
		if closedAtZero || hardOverflow {
			flush(lineNum)
		}
	}
	flush(len(lines))

	for i := range chunks {
		chunks[i].ID = newID(relPath, chunks[i].StartLine, chunks[i].EndLine, chunks[i].Content)
	}
	return chunks
}
