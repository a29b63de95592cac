package chunk

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// astLanguage is the set of node kinds that count as a "function-like" or
// "class-like" unit for a given grammar, grounded on the node kinds the
// language-specific parsers key off of.
type astLanguage struct {
	language   func() *sitter.Language
	nodeKinds  map[string]string // tree-sitter node kind -> chunk_type label
	structKind string            // kind that signals "use high complexity weight"
}

var astLanguages = map[string]astLanguage{
	"python": {
		language: func() *sitter.Language { return sitter.NewLanguage(python.Language()) },
		nodeKinds: map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		},
	},
	"typescript": {
		language: func() *sitter.Language { return sitter.NewLanguage(typescript.LanguageTypescript()) },
		nodeKinds: map[string]string{
			"function_declaration":  "function",
			"method_definition":     "method",
			"class_declaration":     "class",
			"interface_declaration": "interface",
		},
	},
	"javascript": {
		language: func() *sitter.Language { return sitter.NewLanguage(typescript.LanguageTypescript()) },
		nodeKinds: map[string]string{
			"function_declaration": "function",
			"method_definition":    "method",
			"class_declaration":    "class",
		},
	},
	"c": {
		language: func() *sitter.Language { return sitter.NewLanguage(c.Language()) },
		nodeKinds: map[string]string{
			"function_definition": "function",
			"struct_specifier":    "class",
			"enum_specifier":      "class",
			"union_specifier":     "class",
		},
	},
	"cpp": {
		language: func() *sitter.Language { return sitter.NewLanguage(c.Language()) },
		nodeKinds: map[string]string{
			"function_definition": "function",
			"struct_specifier":    "class",
			"class_specifier":     "class",
		},
	},
	"java": {
		language: func() *sitter.Language { return sitter.NewLanguage(java.Language()) },
		nodeKinds: map[string]string{
			"method_declaration":    "method",
			"class_declaration":     "class",
			"interface_declaration": "interface",
			"enum_declaration":      "class",
		},
	},
	"php": {
		language: func() *sitter.Language { return sitter.NewLanguage(php.LanguagePHP()) },
		nodeKinds: map[string]string{
			"function_definition": "function",
			"method_declaration":  "method",
			"class_declaration":   "class",
		},
	},
	"ruby": {
		language: func() *sitter.Language { return sitter.NewLanguage(ruby.Language()) },
		nodeKinds: map[string]string{
			"method": "method",
			"class":  "class",
			"module": "class",
		},
	},
	"rust": {
		language: func() *sitter.Language { return sitter.NewLanguage(rust.Language()) },
		nodeKinds: map[string]string{
			"function_item": "function",
			"struct_item":   "class",
			"enum_item":     "class",
			"trait_item":    "interface",
			"impl_item":     "generic",
		},
	},
}

// astSupported reports whether the AST strategy has a grammar for language.
func astSupported(language string) bool {
	_, ok := astLanguages[language]
	return ok
}

// chunkAST extracts function-like and class-like spans via tree-sitter. It
// returns (nil, false) when the grammar is unavailable or parsing fails,
// signaling the dispatcher to fall through to the next strategy.
func chunkAST(content, language, relPath string) ([]CodeChunk, bool) {
	def, ok := astLanguages[language]
	if !ok {
		return nil, false
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(def.language())

	source := []byte(content)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, false
	}
	defer tree.Close()

	var chunks []CodeChunk
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if chunkType, ok := def.nodeKinds[node.Kind()]; ok {
			start := int(node.StartPosition().Row) + 1
			end := int(node.EndPosition().Row) + 1
			span := string(source[node.StartByte():node.EndByte()])
			chunks = append(chunks, CodeChunk{
				RelPath:    relPath,
				Language:   language,
				Content:    span,
				StartLine:  start,
				EndLine:    end,
				ChunkType:  chunkType,
				Strategy:   StrategyAST,
				Complexity: estimateComplexity(span),
			})
			// Do not recurse into the body of an extracted unit; nested
			// functions/closures are already covered by the parent span.
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(uint(i)))
		}
	}
	walk(tree.RootNode())

	if len(chunks) == 0 {
		return []CodeChunk{{
			RelPath:    relPath,
			Language:   language,
			Content:    content,
			StartLine:  1,
			EndLine:    int(tree.RootNode().EndPosition().Row) + 1,
			ChunkType:  "generic",
			Strategy:   StrategyAST,
			Complexity: estimateComplexity(content),
		}}, true
	}

	for i := range chunks {
		chunks[i].ID = newID(relPath, chunks[i].StartLine, chunks[i].EndLine, chunks[i].Content)
	}
	return chunks, true
}

var complexityKeywords = []string{
	"if", "else", "for", "while", "switch", "case", "catch", "try",
	"&&", "||", "?", "goto",
}

// estimateComplexity is a weighted count of control-flow keywords and
// branching punctuation, recorded as a chunk's complexity and compared
// against the semantic threshold to decide whether the semantic strategy
// should engage.
func estimateComplexity(content string) int {
	score := 0
	for _, kw := range complexityKeywords {
		score += strings.Count(content, kw)
	}
	score += strings.Count(content, "{")
	return score
}
