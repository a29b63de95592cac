package chunk

// semanticComplexityThreshold is the minimum weighted control-flow score
// (see estimateComplexity) a file must exceed for the semantic strategy to
// engage ahead of the plain bracket strategy.
const semanticComplexityThreshold = 40

// chunkSemantic applies when a file's control-flow density is high enough
// that bracket-balanced splitting alone would produce chunks too dense to
// embed usefully; it reuses bracket-depth splitting but biases toward the
// lower end of the configured size range so each chunk covers less ground.
func chunkSemantic(content, language, relPath string, bounds Bounds) ([]CodeChunk, bool) {
	if estimateComplexity(content) <= semanticComplexityThreshold {
		return nil, false
	}

	tightened := bounds
	tightened.MaxChunkSize = bounds.MinChunkSize + (bounds.MaxChunkSize-bounds.MinChunkSize)/2
	if tightened.MaxChunkSize < bounds.MinChunkSize {
		tightened.MaxChunkSize = bounds.MinChunkSize
	}

	chunks := chunkBracket(content, language, relPath, tightened)
	for i := range chunks {
		chunks[i].Strategy = StrategySemantic
		chunks[i].ChunkType = "code_block"
		chunks[i].Complexity = estimateComplexity(chunks[i].Content)
	}
	return chunks, len(chunks) > 0
}
