// Package commands suggests command-line tools for a natural-language task.
package commands

import "sort"

// Category groups related tools
type Category int

const (
	CategoryOther Category = iota
	CategorySystem
	CategoryNetwork
	CategoryFileSystem
	CategoryProcess
	CategoryPerformance
	CategoryDevelopment
)

func (c Category) String() string {
	switch c {
	case CategorySystem:
		return "System"
	case CategoryNetwork:
		return "Network"
	case CategoryFileSystem:
		return "File System"
	case CategoryProcess:
		return "Process"
	case CategoryPerformance:
		return "Performance"
	case CategoryDevelopment:
		return "Development"
	default:
		return "Other"
	}
}

// MarshalText encodes the category by its display name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Command describes a suggested tool
type Command struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Examples    []string `json:"examples"`
	Keywords    []string `json:"keywords"`
}

// Database is an immutable table of known tools keyed by name
type Database struct {
	commands map[string]Command
}

// NewDatabase returns the built-in tool table.
func NewDatabase() *Database {
	return NewDatabaseFrom(builtin())
}

// NewDatabaseFrom builds a database from the given commands.
// Later entries replace earlier ones with the same name.
func NewDatabaseFrom(cmds []Command) *Database {
	db := &Database{commands: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		db.commands[c.Name] = c
	}
	return db
}

// All returns every command sorted by name.
func (db *Database) All() []Command {
	out := make([]Command, 0, len(db.commands))
	for _, c := range db.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get looks up a command by name.
func (db *Database) Get(name string) (Command, bool) {
	c, ok := db.commands[name]
	return c, ok
}

// Len returns the number of commands.
func (db *Database) Len() int {
	return len(db.commands)
}

func builtin() []Command {
	return []Command{
		{
			Name:        "hyperfine",
			Description: "A command-line benchmarking tool that measures command execution time with statistical analysis",
			Category:    CategoryPerformance,
			Examples:    []string{"hyperfine 'sleep 0.3'", "hyperfine --warmup 3 'grep -R TODO ./'"},
			Keywords:    []string{"benchmark", "performance", "timing", "profiling"},
		},
		{
			Name:        "htop",
			Description: "An interactive process viewer and system monitor",
			Category:    CategoryProcess,
			Examples:    []string{"htop", "htop -u username"},
			Keywords:    []string{"process", "monitor", "cpu", "memory", "system"},
		},
		{
			Name:        "ncdu",
			Description: "NCurses Disk Usage - a disk usage analyzer with an ncurses interface",
			Category:    CategoryFileSystem,
			Examples:    []string{"ncdu /home", "ncdu -x /"},
			Keywords:    []string{"disk", "storage", "space", "usage", "files"},
		},
		{
			Name:        "mtr",
			Description: "A network diagnostic tool that combines ping and traceroute",
			Category:    CategoryNetwork,
			Examples:    []string{"mtr google.com", "mtr --report example.com"},
			Keywords:    []string{"network", "ping", "traceroute", "diagnostic"},
		},
		{
			Name:        "fd",
			Description: "A simple, fast and user-friendly alternative to find",
			Category:    CategoryFileSystem,
			Examples:    []string{"fd pattern", "fd -e txt"},
			Keywords:    []string{"find", "search", "files", "locate"},
		},
		{
			Name:        "ripgrep",
			Description: "An extremely fast alternative to grep that respects gitignore rules",
			Category:    CategoryDevelopment,
			Examples:    []string{"rg pattern", "rg -t go 'func main'"},
			Keywords:    []string{"search", "grep", "code", "find"},
		},
		{
			Name:        "fzf",
			Description: "A command-line fuzzy finder",
			Category:    CategoryProcess,
			Examples:    []string{"fzf", "vim $(fzf)"},
			Keywords:    []string{"search", "filter", "fuzzy", "find"},
		},
		{
			Name:        "jq",
			Description: "A lightweight command-line JSON processor",
			Category:    CategoryDevelopment,
			Examples:    []string{"jq '.items[].name' data.json", "curl -s api/url | jq ."},
			Keywords:    []string{"json", "parse", "filter", "query"},
		},
		{
			Name:        "bat",
			Description: "A cat clone with syntax highlighting and git integration",
			Category:    CategoryDevelopment,
			Examples:    []string{"bat main.go", "bat -A script.sh"},
			Keywords:    []string{"cat", "view", "highlight", "syntax"},
		},
		{
			Name:        "tldr",
			Description: "Simplified and community-driven man pages with practical examples",
			Category:    CategorySystem,
			Examples:    []string{"tldr tar", "tldr --update"},
			Keywords:    []string{"help", "manual", "man", "documentation", "examples"},
		},
	}
}
