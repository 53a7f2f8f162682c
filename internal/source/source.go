// Package source concatenates named manifest sources into one
// logical document while keeping a provenance map from global line
// numbers back to the originating source.
package source

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// StdinName is the source name reported for standard input.
const StdinName = "<stdin>"

// Named couples a source name with its full content. Content is read
// eagerly so file handles never outlive aggregation.
type Named struct {
	Name    string
	Content string
}

type span struct {
	start int // exclusive, running line offset before this source
	end   int // inclusive, last global line of this source
	name  string
}

// Aggregate is the concatenated document plus its provenance map.
// The provenance map is ordered and non-overlapping and is never
// mutated after construction.
type Aggregate struct {
	Content string
	spans   []span
}

// Read loads every path into a Named source. With no paths, all of
// stdin is read instead. Opened files are closed before returning,
// also on error.
func Read(paths []string, stdin io.Reader) ([]Named, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", StdinName, err)
		}
		return []Named{{Name: StdinName, Content: string(data)}}, nil
	}

	sources := make([]Named, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		sources = append(sources, Named{Name: path, Content: string(data)})
	}
	return sources, nil
}

// Concat joins sources by raw concatenation. Used for publish
// inputs, where every streamed file already ends in content the
// parser tokenizes independently.
func Concat(sources []Named) *Aggregate {
	return aggregate(sources, "")
}

// Join joins sources with an explicit newline separator so every
// source starts its own line. Used for include inputs.
func Join(sources []Named) *Aggregate {
	return aggregate(sources, "\n")
}

func aggregate(sources []Named, sep string) *Aggregate {
	agg := &Aggregate{}
	parts := make([]string, 0, len(sources))
	offset := 0
	for _, src := range sources {
		lines := countLines(src.Content)
		agg.spans = append(agg.spans, span{start: offset, end: offset + lines, name: src.Name})
		offset += lines
		parts = append(parts, src.Content)
	}
	agg.Content = strings.Join(parts, sep)
	return agg
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// Resolve maps a 1-based global line number back to its source and
// local line. Best effort: a line outside every span reports
// ok=false instead of failing.
func (a *Aggregate) Resolve(line int) (name string, local int, ok bool) {
	for _, sp := range a.spans {
		if line > sp.start && line <= sp.end {
			return sp.name, line - sp.start, true
		}
	}
	return "", 0, false
}

// Attribution renders the source attribution for a global line,
// degrading to "???" when the line cannot be attributed.
func (a *Aggregate) Attribution(line int) string {
	name, local, ok := a.Resolve(line)
	if !ok {
		return "File ??? line ???"
	}
	return fmt.Sprintf("File %s line %d", name, local)
}
