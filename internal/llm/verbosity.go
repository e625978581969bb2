package llm

import (
	"fmt"
	"strings"
)

// Verbosity controls how much detail the model is asked for
type Verbosity string

const (
	VerbosityConcise  Verbosity = "concise"
	VerbosityNormal   Verbosity = "normal"
	VerbosityDetailed Verbosity = "detailed"
)

// ParseVerbosity parses a --detail value. An empty string means concise.
func ParseVerbosity(s string) (Verbosity, error) {
	switch Verbosity(strings.ToLower(strings.TrimSpace(s))) {
	case "", VerbosityConcise:
		return VerbosityConcise, nil
	case VerbosityNormal:
		return VerbosityNormal, nil
	case VerbosityDetailed:
		return VerbosityDetailed, nil
	default:
		return "", fmt.Errorf("unknown verbosity %q (valid: concise, normal, detailed)", s)
	}
}

// SystemPrompt returns the instruction sent ahead of the user's prompt
func (v Verbosity) SystemPrompt() string {
	switch v {
	case VerbosityNormal:
		return "Provide balanced responses with moderate detail."
	case VerbosityDetailed:
		return "Provide detailed and comprehensive responses with thorough explanations and examples where appropriate."
	default:
		return "Be concise and to the point. Provide only essential information without unnecessary details or explanations."
	}
}
