package actions

import (
	"fmt"
	"strings"
)

// ParseLine parses one manifest line of the form
//
//	actionname [hash] key=value ...
//
// Values may be double-quoted and contain backslash escapes. The
// optional hash token is only accepted for payload-bearing actions.
func ParseLine(line string) (*Action, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &InvalidActionError{Reason: "empty action line"}
	}

	name := tokens[0]
	rest := tokens[1:]

	var hash string
	if len(rest) > 0 && !strings.Contains(rest[0], "=") {
		hash = rest[0]
		rest = rest[1:]
	}

	a, err := New(name, rest)
	if err != nil {
		return nil, err
	}
	if hash != "" {
		if !a.HasPayload() {
			return nil, &InvalidActionError{
				Action: name,
				Reason: fmt.Sprintf("hash token %q on an action without payload", hash),
			}
		}
		a.Hash = hash
	}
	return a, nil
}

func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		escaped bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted || escaped {
		return nil, &InvalidActionError{Reason: "unterminated quote"}
	}
	flush()
	return tokens, nil
}
