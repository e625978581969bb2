// Package filetypes classifies files and directories for context gathering.
//
// It decides which directories a listing walks past and which language label a
// file carries when its content is attached to a prompt.
package filetypes

import (
	"path/filepath"
	"strings"
)

// Languages maps file extensions to their syntax highlighting language identifiers
var Languages = map[string]string{
	// Go
	".go": "go",

	// JavaScript/TypeScript
	".js":  "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".jsx": "javascript",

	// Python
	".py": "python",

	// Java/JVM
	".java":  "java",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".scala": "scala",

	// C/C++
	".c":   "c",
	".cpp": "cpp",
	".cc":  "cpp",
	".h":   "c",
	".hpp": "cpp",

	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".rs":    "rust",
	".lua":   "lua",

	// Shell
	".sh":   "bash",
	".bash": "bash",
	".zsh":  "zsh",
	".fish": "fish",
	".ps1":  "powershell",

	// Config/Data
	".proto": "protobuf",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".xml":   "xml",
	".ini":   "ini",
	".csv":   "csv",

	// Documentation
	".md":  "markdown",
	".rst": "restructuredtext",
	".txt": "text",
}

// Filenames maps extensionless well-known file names to languages
var Filenames = map[string]string{
	"Dockerfile":  "dockerfile",
	"Makefile":    "makefile",
	"Justfile":    "just",
	"Vagrantfile": "ruby",
	"Gemfile":     "ruby",
	".bashrc":     "bash",
	".zshrc":      "zsh",
	".gitignore":  "gitignore",
}

// SkipDirectories lists directories a listing never descends into
var SkipDirectories = map[string]bool{
	// Version control
	".git": true,
	".svn": true,
	".hg":  true,

	// Dependencies
	"node_modules": true,
	"vendor":       true,

	// Build artifacts
	"dist":   true,
	"build":  true,
	"target": true,
	"out":    true,

	// Python
	"__pycache__": true,
	".venv":       true,
	"venv":        true,
	".tox":        true,

	// IDE
	".idea":   true,
	".vscode": true,
	".vs":     true,

	".next":  true,
	".cache": true,
}

// GetLanguage returns the language label for a file path.
// Returns empty string if the file type is not recognized.
func GetLanguage(path string) string {
	base := filepath.Base(path)
	if lang, ok := Filenames[base]; ok {
		return lang
	}
	ext := strings.ToLower(filepath.Ext(base))
	return Languages[ext]
}

// ShouldSkipDirectory returns true for dependency, build and VCS directories
func ShouldSkipDirectory(name string) bool {
	return SkipDirectories[name]
}

// IsHidden reports whether a file or directory name is a dotfile
func IsHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}
