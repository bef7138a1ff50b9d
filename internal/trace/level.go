package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity. Each level past LevelError admits one
// more scope.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // only dump the ring on failure
	LevelStage               // commands and stages
	LevelKernel              // plus per-argument and per-buffer events
	LevelDebug               // everything
)

var levelNames = [...]string{
	LevelOff:    "off",
	LevelError:  "error",
	LevelStage:  "stage",
	LevelKernel: "kernel",
	LevelDebug:  "debug",
}

// finest is the last scope each level admits.
var finest = [...]Scope{
	LevelStage:  ScopeStage,
	LevelKernel: ScopeKernel,
	LevelDebug:  ScopeNode,
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts the level names case-insensitively.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == s {
			return Level(l), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope pass at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	if int(l) >= len(finest) || l < LevelStage {
		return false
	}
	return scope >= ScopeCommand && scope <= finest[l]
}

// records is ShouldEmit widened for LevelError, where stage events are kept
// for the failure dump without being streamed.
func (l Level) records(scope Scope) bool {
	if l == LevelError {
		return scope >= ScopeCommand && scope <= ScopeStage
	}
	return l.ShouldEmit(scope)
}
