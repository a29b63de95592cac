package traversal

import "strings"

// languageByExtension maps a file extension to the language identifier used
// throughout the chunker and the rest of the engine. It mirrors the
// extension table the AST parsers recognize.
var languageByExtension = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".php":  "php",
	".rb":   "ruby",
	".java": "java",
	".md":   "markdown",
}

// LanguageFor resolves the language for a file extension, for callers
// outside this package that need to classify a single file (the Coordinator's
// incremental handle_file_change path) without running a full Traverse.
func LanguageFor(ext string, whitelist []string) (string, bool) {
	return languageFor(ext, whitelist)
}

// languageFor resolves the language for a file extension. When whitelist is
// non-empty, the extension must also appear in it; an empty whitelist means
// every extension in languageByExtension is supported.
func languageFor(ext string, whitelist []string) (string, bool) {
	ext = strings.ToLower(ext)
	lang, known := languageByExtension[ext]
	if !known {
		return "", false
	}
	if len(whitelist) == 0 {
		return lang, true
	}
	for _, allowed := range whitelist {
		if strings.EqualFold(allowed, ext) {
			return lang, true
		}
	}
	return "", false
}
