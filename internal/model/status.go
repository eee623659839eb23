package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a traversal, a worker or a batch run.
//
// Idle and Running are transient. Completed, Cancelled and Failed are
// terminal: once reached, a status never changes again.
type Status int32

const (
	// StatusIdle means the work has been created but not started.
	StatusIdle Status = iota

	// StatusRunning means pages are being fetched.
	StatusRunning

	// StatusCompleted means the frontier was exhausted or the page cap was reached.
	StatusCompleted

	// StatusCancelled means the operator stopped the run. Results gathered
	// before the stop are kept.
	StatusCancelled

	// StatusFailed means the fetch service became unusable mid-run.
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// ParseStatus converts the output of Status.String back to a Status.
func ParseStatus(s string) (Status, error) {
	for st := StatusIdle; st <= StatusFailed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusIdle, fmt.Errorf("unknown status %q", s)
}

// Strategy selects the order in which discovered pages are visited.
type Strategy int

const (
	// StrategyBFS visits pages level by level in discovery order.
	StrategyBFS Strategy = iota

	// StrategyDFS follows the most recently discovered link first.
	StrategyDFS

	// StrategyBestFirst visits the highest-scoring pending page first.
	StrategyBestFirst
)

// String returns the canonical name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyBFS:
		return "bfs"
	case StrategyDFS:
		return "dfs"
	case StrategyBestFirst:
		return "best-first"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	return s >= StrategyBFS && s <= StrategyBestFirst
}

// ParseStrategy parses a strategy name. Matching is case-insensitive and
// accepts "best_first" and "bestfirst" as aliases of "best-first".
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bfs", "breadth-first", "":
		return StrategyBFS, nil
	case "dfs", "depth-first":
		return StrategyDFS, nil
	case "best-first", "best_first", "bestfirst":
		return StrategyBestFirst, nil
	default:
		return StrategyBFS, fmt.Errorf("unknown strategy %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler so strategies read and
// write as names in YAML and JSON.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
