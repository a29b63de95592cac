package chunk

import (
	"log"
	"strings"

	"github.com/index-engine/engine/internal/config"
)

// Bounds mirrors config.ChunkingConfig; kept distinct so strategies depend
// on this package rather than on internal/config directly.
type Bounds struct {
	SmallFileThreshold  int
	MinChunkSize        int
	MaxChunkSize        int
	MaxLinesPerChunk    int
	OverlapSize         int
	MaxOverlapRatio     float64
	SimilarityThreshold float64
}

func boundsFrom(cfg config.ChunkingConfig) Bounds {
	return Bounds{
		SmallFileThreshold:  cfg.SmallFileThreshold,
		MinChunkSize:        cfg.MinChunkSize,
		MaxChunkSize:        cfg.MaxChunkSize,
		MaxLinesPerChunk:    cfg.MaxLinesPerChunk,
		OverlapSize:         cfg.OverlapSize,
		MaxOverlapRatio:     cfg.MaxOverlapRatio,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
}

// Chunker exposes the public contract: chunk(content, language, rel_path).
type Chunker struct {
	cfg    config.ChunkingConfig
	logger *log.Logger
}

// New builds a Chunker bound to the given chunking bounds.
func New(cfg config.ChunkingConfig, logger *log.Logger) *Chunker {
	if logger == nil {
		logger = log.Default()
	}
	return &Chunker{cfg: cfg, logger: logger}
}

// Chunk splits content into chunks using the priority-ordered strategy
// table: Markdown, AST, Semantic, Bracket, Line. Small files bypass
// selection entirely and are emitted as a single chunk, preserving the
// chunk_type the would-be strategy assigns.
func (c *Chunker) Chunk(content, language, relPath string) []CodeChunk {
	bounds := boundsFrom(c.cfg)

	if len(content) <= bounds.SmallFileThreshold {
		return c.chunkSmallFile(content, language, relPath, bounds)
	}

	var raw []CodeChunk
	switch {
	case language == "markdown":
		raw = chunkMarkdown(content, relPath, bounds)
	case astSupported(language):
		if chunks, ok := chunkAST(content, language, relPath); ok {
			raw = chunks
		}
	}

	if len(raw) == 0 {
		if chunks, ok := chunkSemantic(content, language, relPath, bounds); ok {
			raw = chunks
		}
	}
	if len(raw) == 0 && usesBraceStructure(language) {
		raw = chunkBracket(content, language, relPath, bounds)
	}
	if len(raw) == 0 {
		raw = chunkLine(content, language, relPath, bounds)
	}

	return postProcess(raw, bounds, c.logger.Printf)
}

// chunkSmallFile emits a single chunk for the whole file, choosing the
// chunk_type the matching strategy would have assigned rather than a
// generic label, per the documented small-file behavior.
func (c *Chunker) chunkSmallFile(content, language, relPath string, bounds Bounds) []CodeChunk {
	chunkType := "line"
	strategy := StrategyLine
	switch {
	case language == "markdown":
		chunkType, strategy = "heading", StrategyMarkdown
	case astSupported(language):
		chunkType, strategy = "generic", StrategyAST
	case usesBraceStructure(language):
		chunkType, strategy = "code_block", StrategyBracket
	}

	lineCount := strings.Count(content, "\n") + 1
	chunk := CodeChunk{
		RelPath:    relPath,
		Language:   language,
		Content:    content,
		StartLine:  1,
		EndLine:    lineCount,
		ChunkType:  chunkType,
		Strategy:   strategy,
		Complexity: estimateComplexity(content),
	}
	chunk.ID = newID(relPath, chunk.StartLine, chunk.EndLine, chunk.Content)
	return []CodeChunk{chunk}
}

var braceLanguages = map[string]bool{
	"go": true, "typescript": true, "javascript": true, "java": true,
	"c": true, "cpp": true, "php": true, "rust": true,
}

func usesBraceStructure(language string) bool {
	return braceLanguages[language]
}
