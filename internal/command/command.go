// Package command defines the closed vocabulary of requests the session
// manager accepts, and parses it from console lines and scripts.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one request in the vocabulary.
type Kind int

const (
	KindUnknown Kind = iota
	KindBegin
	KindEnd
	KindLoadSurface
	KindUpdateLayers
	KindGetPreviewPoints
	KindCreateDesign
	KindHelp
	KindCancel
	KindStatus
)

// DefaultArg is the operation argument used when none is given.
const DefaultArg = 42

var (
	ErrEmpty          = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
)

type entry struct {
	kind      Kind
	letter    byte
	name      string
	help      string
	operation bool // spawns asynchronous work
}

// vocabulary is listed in usage order.
var vocabulary = []entry{
	{KindBegin, 'b', "begin-session", "Begin a new session", false},
	{KindEnd, 'e', "end-session", "End current session", false},
	{KindLoadSurface, 'l', "load-surface", "Load surface", true},
	{KindUpdateLayers, 'u', "update-layers", "Update layers", true},
	{KindGetPreviewPoints, 'g', "get-preview-points", "Get preview points", true},
	{KindCreateDesign, 'c', "create-design", "Create design", true},
	{KindCancel, 'x', "cancel-operation", "Cancel the running operation", false},
	{KindStatus, 's', "status", "Show session status", false},
	{KindHelp, 'h', "help", "Print this help message", false},
}

func lookup(k Kind) (entry, bool) {
	for _, e := range vocabulary {
		if e.kind == k {
			return e, true
		}
	}
	return entry{}, false
}

// String returns the spelled-out command name.
func (k Kind) String() string {
	if e, ok := lookup(k); ok {
		return e.name
	}
	return "unknown"
}

// Letter returns the single-key shortcut, or 0 for KindUnknown.
func (k Kind) Letter() byte {
	e, _ := lookup(k)
	return e.letter
}

// IsOperation reports whether k spawns asynchronous work on a session.
func (k Kind) IsOperation() bool {
	e, _ := lookup(k)
	return e.operation
}

// Request is one parsed command.
type Request struct {
	Kind Kind
	Arg  int
}

func (r Request) String() string {
	if r.Kind.IsOperation() {
		return fmt.Sprintf("%s %d", r.Kind, r.Arg)
	}
	return r.Kind.String()
}

// Parse reads one command: a letter or name, optionally followed by an
// integer argument separated by a space or '=' ("l", "l 7",
// "load-surface=7").  Operations without an argument get DefaultArg.
func Parse(line string) (Request, error) {
	fields := strings.Fields(strings.Replace(strings.TrimSpace(line), "=", " ", 1))
	if len(fields) == 0 {
		return Request{}, ErrEmpty
	}
	if len(fields) > 2 {
		return Request{}, fmt.Errorf("%w: %q has too many fields", ErrBadArgument, line)
	}

	word := strings.ToLower(fields[0])
	var found *entry
	for i := range vocabulary {
		e := &vocabulary[i]
		if word == e.name || (len(word) == 1 && word[0] == e.letter) {
			found = e
			break
		}
	}
	if found == nil {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}

	req := Request{Kind: found.kind}
	if found.operation {
		req.Arg = DefaultArg
	}
	if len(fields) == 2 {
		if !found.operation {
			return Request{}, fmt.Errorf("%w: %s takes no argument", ErrBadArgument, found.name)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Request{}, fmt.Errorf("%w: %q is not an integer", ErrBadArgument, fields[1])
		}
		req.Arg = n
	}
	return req, nil
}

// Step is one entry of a script: either a request or a pause.
type Step struct {
	Request Request
	Pause   time.Duration
}

// IsPause reports whether the step only waits.
func (s Step) IsPause() bool { return s.Request.Kind == KindUnknown }

// ParseScript splits s on ';', ',' or newlines and parses every
// non-empty entry.  "pause <duration>" (or "pause=<duration>") inserts
// a delay, e.g. "b; l 7; pause 200ms; e".
func ParseScript(s string) ([]Step, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	})

	var steps []Step
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if rest, ok := cutPause(part); ok {
			d, err := time.ParseDuration(rest)
			if err != nil || d < 0 {
				return nil, fmt.Errorf("script entry %d: %w: pause %q", i+1, ErrBadArgument, rest)
			}
			steps = append(steps, Step{Pause: d})
			continue
		}
		req, err := Parse(part)
		if err != nil {
			return nil, fmt.Errorf("script entry %d: %w", i+1, err)
		}
		steps = append(steps, Step{Request: req})
	}
	return steps, nil
}

func cutPause(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, prefix := range []string{"pause ", "pause="} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(s[len(prefix):]), true
		}
	}
	return "", false
}

// Usage returns the help text listing every command.
func Usage() string {
	var b strings.Builder
	b.WriteString("Usage: type a command letter (or name), followed by <Enter>\n")
	for _, e := range vocabulary {
		fmt.Fprintf(&b, "  '%c' -> %s", e.letter, e.help)
		if e.operation {
			b.WriteString(" [arg]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
