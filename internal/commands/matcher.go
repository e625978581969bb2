package commands

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrNoMatch is returned when no command scores above zero
var ErrNoMatch = errors.New("no matching commands found")

// MaxSuggestions is the number of commands returned by Find
const MaxSuggestions = 3

const (
	scoreName            = 100
	scoreCategory        = 50
	scoreKeyword         = 30
	scoreDescription     = 20
	scoreCategoryPattern = 40
)

// Common phrasings that point at a category even when no keyword matches
var categoryPatterns = []struct {
	expr     string
	category Category
}{
	{`\b(profil(e|er|ing)|benchmark(s|ing)?|time|timing|slow)\b`, CategoryPerformance},
	{`\b(monitor(ing)?|process(es)?|cpu|memory)\b`, CategoryProcess},
	{`\b(disk|storage|space|files?)\b`, CategoryFileSystem},
	{`\b(network|ping|connection|latency)\b`, CategoryNetwork},
	{`\b(develop(ment)?|code|program(ming)?)\b`, CategoryDevelopment},
}

type compiledCommand struct {
	Command
	name     *regexp.Regexp
	category *regexp.Regexp
	keywords []*regexp.Regexp
	lower    struct{ name, category, description string }
}

type compiledPattern struct {
	re       *regexp.Regexp
	category Category
}

// Match is a scored command
type Match struct {
	Command Command
	Score   int
}

// Matcher scores database commands against free-text queries.
// All patterns are compiled once at construction.
type Matcher struct {
	commands []compiledCommand
	patterns []compiledPattern
}

// NewMatcher compiles matching patterns for every command in db.
func NewMatcher(db *Database) *Matcher {
	m := &Matcher{}

	for _, p := range categoryPatterns {
		m.patterns = append(m.patterns, compiledPattern{re: regexp.MustCompile(p.expr), category: p.category})
	}

	for _, c := range db.All() {
		cc := compiledCommand{
			Command:  c,
			name:     wordPattern(c.Name),
			category: wordPattern(c.Category.String()),
		}
		for _, kw := range c.Keywords {
			cc.keywords = append(cc.keywords, wordPattern(kw))
		}
		cc.lower.name = strings.ToLower(c.Name)
		cc.lower.category = strings.ToLower(c.Category.String())
		cc.lower.description = strings.ToLower(c.Description)
		m.commands = append(m.commands, cc)
	}

	return m
}

func wordPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(s)) + `\b`)
}

// Score rates how well the named command fits query. Unknown names score 0.
func (m *Matcher) Score(name, query string) int {
	q := normalize(query)
	for i := range m.commands {
		if m.commands[i].Name == name {
			return m.score(&m.commands[i], q)
		}
	}
	return 0
}

func (m *Matcher) score(c *compiledCommand, q string) int {
	if q == "" {
		return 0
	}

	score := 0

	if c.name.MatchString(q) || strings.Contains(c.lower.name, q) {
		score += scoreName
	}

	if c.category.MatchString(q) || strings.Contains(c.lower.category, q) {
		score += scoreCategory
	}

	for _, kw := range c.keywords {
		if kw.MatchString(q) {
			score += scoreKeyword
		}
	}

	if strings.Contains(c.lower.description, q) {
		score += scoreDescription
	}

	for _, p := range m.patterns {
		if p.category == c.Category && p.re.MatchString(q) {
			score += scoreCategoryPattern
		}
	}

	return score
}

// Find returns up to MaxSuggestions matches ordered by score, then name.
func (m *Matcher) Find(query string) []Match {
	q := normalize(query)

	var matches []Match
	for i := range m.commands {
		if s := m.score(&m.commands[i], q); s > 0 {
			matches = append(matches, Match{Command: m.commands[i].Command, Score: s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Command.Name < matches[j].Command.Name
	})

	if len(matches) > MaxSuggestions {
		matches = matches[:MaxSuggestions]
	}
	return matches
}

// Suggest returns the best commands for query, or ErrNoMatch.
func (m *Matcher) Suggest(query string) ([]Command, error) {
	matches := m.Find(query)
	if len(matches) == 0 {
		return nil, ErrNoMatch
	}

	out := make([]Command, len(matches))
	for i, match := range matches {
		out[i] = match.Command
	}
	return out, nil
}

func normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
