// Package trace turns system-call trace text into causal events.
//
// Input lines have the form
//
//	<index> <sec>.<nsec> <process> <dir> <operation> <object> [args...]
//
// where dir is ">" for a call entry and "<" for its exit. An event is emitted
// for each exit, timed from the latest entry of the same process and
// operation. The pairing ignores the object: when one process has two calls
// of the same operation in flight, the second entry overwrites the first and
// both exits report the later start time.
package trace

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/agentsh/backtrack/internal/pattern"
	"github.com/agentsh/backtrack/pkg/types"
)

const (
	dirEntry = ">"
	dirExit  = "<"

	minFields = 6

	// ctxCheckEvery bounds how many lines are read between cancellation checks.
	ctxCheckEvery = 4096
)

// DefaultExclude is the exclusion list used when none is configured.
var DefaultExclude = []string{"@kernel-channel"}

// UnmatchedPolicy decides what happens to an exit without a pending entry.
type UnmatchedPolicy string

const (
	// UnmatchedDrop skips the exit and counts it in Stats.Unmatched.
	UnmatchedDrop UnmatchedPolicy = "drop"
	// UnmatchedError fails the parse with *UnmatchedExitError.
	UnmatchedError UnmatchedPolicy = "error"
	// UnmatchedKeep emits the event flagged Unmatched with Start = End.
	UnmatchedKeep UnmatchedPolicy = "keep"
)

// ParseUnmatchedPolicy validates a policy name. Empty selects UnmatchedDrop.
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch p := UnmatchedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UnmatchedDrop, nil
	case UnmatchedDrop, UnmatchedError, UnmatchedKeep:
		return p, nil
	default:
		return "", fmt.Errorf("invalid unmatched exit policy %q (want drop, error or keep)", s)
	}
}

// Options configures a Parser.
type Options struct {
	// Exclude drops exits whose object matches. Nil uses DefaultExclude.
	Exclude   *pattern.Set
	Unmatched UnmatchedPolicy
	Logger    *slog.Logger
}

// Stats summarizes one parse run.
type Stats struct {
	Lines     int `json:"lines"`
	Entries   int `json:"entries"`
	Exits     int `json:"exits"`
	Events    int `json:"events"`
	Excluded  int `json:"excluded"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
}

// Parser is stateless between calls and safe for concurrent use.
type Parser struct {
	exclude   *pattern.Set
	unmatched UnmatchedPolicy
	logger    *slog.Logger
}

// NewParser builds a Parser. It fails only if the default exclusion list
// cannot be compiled.
func NewParser(opts Options) (*Parser, error) {
	p := &Parser{
		exclude:   opts.Exclude,
		unmatched: opts.Unmatched,
		logger:    opts.Logger,
	}
	if p.exclude == nil {
		set, err := pattern.NewSet(DefaultExclude, nil)
		if err != nil {
			return nil, fmt.Errorf("default exclusions: %w", err)
		}
		p.exclude = set
	}
	if p.unmatched == "" {
		p.unmatched = UnmatchedDrop
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p, nil
}

// ParseFile opens path and parses it. A missing or unreadable file yields an
// empty event list and a *SourceNotFoundError.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]types.CausalEvent, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return []types.CausalEvent{}, Stats{}, &SourceNotFoundError{Path: path, Err: err}
	}
	defer f.Close()
	return p.Parse(ctx, f)
}

type pairKey struct {
	process   string
	operation string
}

// Parse reads r to the end and returns the events in exit order.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]types.CausalEvent, Stats, error) {
	var (
		stats   Stats
		events  = []types.CausalEvent{}
		pending = make(map[pairKey]types.Time)
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		stats.Lines++
		lineNo := stats.Lines
		if lineNo%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			stats.Skipped++
			continue
		}
		if len(fields) < minFields {
			return nil, stats, &MalformedLineError{
				Line:   lineNo,
				Reason: fmt.Sprintf("want at least %d fields, got %d", minFields, len(fields)),
			}
		}

		index, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, stats, &MalformedLineError{Line: lineNo, Reason: "bad event index", Err: err}
		}
		ts, err := types.ParseTime(fields[1])
		if err != nil {
			return nil, stats, &MalformedLineError{Line: lineNo, Reason: "bad timestamp", Err: err}
		}
		key := pairKey{process: fields[2], operation: fields[4]}
		object := fields[5]

		switch fields[3] {
		case dirEntry:
			stats.Entries++
			pending[key] = ts

		case dirExit:
			stats.Exits++
			if m, ok := p.exclude.Match(object); ok {
				stats.Excluded++
				p.logger.Debug("trace: exit on excluded object", "line", lineNo, "index", index, "object", object, "pattern", m.Raw)
				continue
			}

			ev := types.CausalEvent{
				Index:     index,
				Process:   key.process,
				Operation: key.operation,
				Object:    object,
				End:       ts,
			}
			start, ok := pending[key]
			if !ok {
				switch p.unmatched {
				case UnmatchedError:
					return nil, stats, &UnmatchedExitError{Line: lineNo, Index: index, Process: key.process, Operation: key.operation}
				case UnmatchedKeep:
					start = ts
					ev.Unmatched = true
					stats.Unmatched++
				default:
					stats.Unmatched++
					p.logger.Warn("trace: dropping exit without entry", "line", lineNo, "index", index, "process", key.process, "operation", key.operation)
					continue
				}
			}
			ev.Start = start
			events = append(events, ev)
			stats.Events++

		default:
			stats.Skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read trace after line %d: %w", stats.Lines, err)
	}
	return events, stats, nil
}
