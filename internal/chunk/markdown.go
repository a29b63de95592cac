package chunk

import (
	"regexp"
	"strings"
)

var (
	mdHeaderPattern    = regexp.MustCompile(`^##\s+`)
	mdCodeFencePattern = regexp.MustCompile("^```")
)

// chunkMarkdown splits a document by level-2 headers, then by paragraph,
// then by sentence, never splitting inside a fenced code block.
func chunkMarkdown(content, relPath string, bounds Bounds) []CodeChunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var chunks []CodeChunk
	for _, sec := range splitByHeaders(lines) {
		chunks = append(chunks, chunkSection(relPath, sec, bounds)...)
	}
	for i := range chunks {
		chunks[i].ID = newID(relPath, chunks[i].StartLine, chunks[i].EndLine, chunks[i].Content)
	}
	return chunks
}

type mdSection struct {
	startLine int
	lines     []string
}

func splitByHeaders(lines []string) []mdSection {
	var sections []mdSection
	current := mdSection{startLine: 1}

	for i, line := range lines {
		if mdHeaderPattern.MatchString(line) && i > 0 {
			if len(current.lines) > 0 {
				sections = append(sections, current)
			}
			current = mdSection{startLine: i + 1, lines: []string{line}}
		} else {
			current.lines = append(current.lines, line)
		}
	}
	if len(current.lines) > 0 {
		sections = append(sections, current)
	}
	return sections
}

func chunkSection(relPath string, sec mdSection, bounds Bounds) []CodeChunk {
	text := strings.Join(sec.lines, "\n")
	if len(text) <= bounds.MaxChunkSize {
		return []CodeChunk{{
			RelPath:   relPath,
			Language:  "markdown",
			Content:   strings.TrimSpace(text),
			StartLine: sec.startLine,
			EndLine:   sec.startLine + len(sec.lines) - 1,
			ChunkType: "heading",
			Strategy:  StrategyMarkdown,
		}}
	}
	return chunkParagraphs(relPath, extractParagraphs(sec.lines, sec.startLine), bounds)
}

type mdParagraph struct {
	text      string
	startLine int
	endLine   int
	isCode    bool
}

func extractParagraphs(lines []string, startLine int) []mdParagraph {
	var paragraphs []mdParagraph
	var current []string
	currentStart := startLine
	inCode := false

	flush := func(endLine int) {
		if len(current) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			paragraphs = append(paragraphs, mdParagraph{text: text, startLine: currentStart, endLine: endLine, isCode: inCode})
		}
		current = nil
	}

	for i, line := range lines {
		lineNum := startLine + i
		if mdCodeFencePattern.MatchString(line) {
			if !inCode {
				flush(lineNum - 1)
				inCode = true
				currentStart = lineNum
				current = append(current, line)
			} else {
				current = append(current, line)
				flush(lineNum)
				inCode = false
				currentStart = lineNum + 1
			}
			continue
		}
		if inCode {
			current = append(current, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush(lineNum - 1)
			currentStart = lineNum + 1
		} else {
			current = append(current, line)
		}
	}
	flush(startLine + len(lines) - 1)
	return paragraphs
}

func chunkParagraphs(relPath string, paragraphs []mdParagraph, bounds Bounds) []CodeChunk {
	var chunks []CodeChunk
	var group []mdParagraph
	size := 0

	flushGroup := func() {
		if len(group) == 0 {
			return
		}
		texts := make([]string, len(group))
		for i, p := range group {
			texts[i] = p.text
		}
		chunks = append(chunks, CodeChunk{
			RelPath:   relPath,
			Language:  "markdown",
			Content:   strings.Join(texts, "\n\n"),
			StartLine: group[0].startLine,
			EndLine:   group[len(group)-1].endLine,
			ChunkType: "paragraph",
			Strategy:  StrategyMarkdown,
		})
		group = nil
		size = 0
	}

	for _, para := range paragraphs {
		paraSize := len(para.text)
		if size > 0 && size+paraSize > bounds.MaxChunkSize {
			flushGroup()
		}
		if paraSize > bounds.MaxChunkSize {
			chunks = append(chunks, chunkSentences(relPath, para, bounds)...)
			continue
		}
		group = append(group, para)
		size += paraSize
	}
	flushGroup()
	return chunks
}

var sentencePattern = regexp.MustCompile(`[.!?]+\s+`)

func chunkSentences(relPath string, para mdParagraph, bounds Bounds) []CodeChunk {
	sentences := sentencePattern.Split(para.text, -1)
	var chunks []CodeChunk
	var current []string
	size := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, CodeChunk{
			RelPath:   relPath,
			Language:  "markdown",
			Content:   strings.Join(current, " "),
			StartLine: para.startLine,
			EndLine:   para.endLine,
			ChunkType: "paragraph",
			Strategy:  StrategyMarkdown,
		})
		current = nil
		size = 0
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if size > 0 && size+len(s) > bounds.MaxChunkSize {
			flush()
		}
		current = append(current, s)
		size += len(s)
	}
	flush()
	return chunks
}
