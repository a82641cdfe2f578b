// Package executor builds and runs invocations of the external AI agent
// backend that performs tasks.
package executor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidExecutor is returned for an unrecognized backend name when no
// custom override is present.
var ErrInvalidExecutor = errors.New("invalid executor")

// Kind is the closed set of executor variants, resolved once at startup.
// Dispatch never falls back to comparing name strings per call.
type Kind int

const (
	// KindClaude is the claude CLI, headless via --print.
	KindClaude Kind = iota
	// KindOpenCode is the opencode CLI, headless via its run subcommand.
	KindOpenCode
	// KindCustom is a fully custom command line supplied by the caller.
	// It bypasses name validation and flag injection entirely.
	KindCustom
)

// String returns the backend's human-readable name.
func (k Kind) String() string {
	switch k {
	case KindClaude:
		return "claude"
	case KindOpenCode:
		return "opencode"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Spec describes one resolved executor invocation shape. The Headless and
// Streamed axes modify the argument vector independently.
type Spec struct {
	Kind Kind

	// Command is the base argv. For builtins this is the backend binary;
	// for KindCustom it is the full override command line.
	Command []string

	// Model optionally overrides the backend's default model. Ignored for
	// KindCustom.
	Model string

	// Headless appends the backend's non-interactive flag. When false the
	// child converses on inherited stdio.
	Headless bool

	// Streamed appends the backend's structured-streaming flag; the
	// caller is expected to redirect stdout (e.g. to a per-task log).
	Streamed bool
}

// Resolve maps a backend name and optional override command line onto a
// Spec. An override wins unconditionally and skips name validation. An empty
// name selects the default backend (claude). Any other unrecognized name is
// a hard ErrInvalidExecutor.
func Resolve(name, override string) (Spec, error) {
	if override != "" {
		// Naive space split, no quoting. Arguments with embedded
		// spaces are a known limitation of the override mechanism.
		tokens := strings.Fields(override)
		if len(tokens) == 0 {
			return Spec{}, fmt.Errorf("%w: override command is blank", ErrInvalidExecutor)
		}
		return Spec{Kind: KindCustom, Command: tokens}, nil
	}

	switch name {
	case "", "claude":
		return Spec{Kind: KindClaude, Command: []string{"claude"}}, nil
	case "opencode":
		return Spec{Kind: KindOpenCode, Command: []string{"opencode"}}, nil
	default:
		return Spec{}, fmt.Errorf("%w: %q (known: claude, opencode)", ErrInvalidExecutor, name)
	}
}

// Argv renders the full argument vector. The rendered task prompt is always
// the final argument.
func (s Spec) Argv(prompt string) []string {
	argv := append([]string(nil), s.Command...)

	switch s.Kind {
	case KindClaude:
		if s.Headless {
			argv = append(argv, "--print", "--dangerously-skip-permissions")
		}
		if s.Model != "" {
			argv = append(argv, "--model", s.Model)
		}
		if s.Streamed {
			argv = append(argv, "--output-format", "stream-json", "--verbose")
		}
	case KindOpenCode:
		if s.Headless {
			argv = append(argv, "run")
		}
		if s.Model != "" {
			argv = append(argv, "--model", s.Model)
		}
		if s.Streamed {
			argv = append(argv, "--print-logs")
		}
	case KindCustom:
		// The override carries its own flags; nothing is injected.
	}

	return append(argv, prompt)
}
