// Package notify carries the user-visible outcome of every command and
// operation: a success message with an optional payload, or an error.
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Level separates successes from failures.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// MarshalText lets JSON sinks write the level by name.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Notification is one outcome.
type Notification struct {
	Level   Level     `json:"level"`
	Command string    `json:"command,omitempty"`
	Message string    `json:"message"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Success builds a success notification stamped with the current time.
func Success(cmd, msg string, payload any) Notification {
	return Notification{Level: LevelSuccess, Command: cmd, Message: msg, Payload: payload, Time: time.Now()}
}

// Failure builds an error notification stamped with the current time.
func Failure(cmd, msg string) Notification {
	return Notification{Level: LevelError, Command: cmd, Message: msg, Time: time.Now()}
}

// Notifier receives notifications.  Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Format selects the Writer encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Writer prints notifications to an io.Writer, one per line.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format Format
	enc    *json.Encoder
}

// NewWriter returns a Writer in the given format; anything other than
// FormatJSON prints text.
func NewWriter(out io.Writer, format Format) *Writer {
	w := &Writer{out: out, format: format}
	if format == FormatJSON {
		w.enc = json.NewEncoder(out)
	}
	return w
}

// Notify writes n.  Text lines look like "Success: Surface loaded" or
// "Error: no active session"; payloads are appended when present.
func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc != nil {
		_ = w.enc.Encode(n)
		return
	}
	prefix := "Success"
	if n.Level == LevelError {
		prefix = "Error"
	}
	if n.Payload != nil {
		fmt.Fprintf(w.out, "%s: %s (%v)\n", prefix, n.Message, n.Payload)
		return
	}
	fmt.Fprintf(w.out, "%s: %s\n", prefix, n.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.list = append(r.list, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Messages returns just the message texts, in arrival order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.list))
	for i, n := range r.list {
		out[i] = n.Message
	}
	return out
}

// Count returns how many recorded notifications carry msg.
func (r *Recorder) Count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, n := range r.list {
		if n.Message == msg {
			c++
		}
	}
	return c
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.list = nil
	r.mu.Unlock()
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, t := range m {
		t.Notify(n)
	}
}
