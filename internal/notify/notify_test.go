package notify

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatText)

	w.Notify(Success("begin-session", "Session started", nil))
	w.Notify(Failure("load-surface", "no active session"))
	w.Notify(Success("status", "Status", 3))

	assert.Equal(t,
		"Success: Session started\nError: no active session\nSuccess: Status (3)\n",
		buf.String())
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatJSON)

	w.Notify(Failure("end-session", "no active session"))
	w.Notify(Success("load-surface", "Surface loaded", map[string]int{"arg": 42}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "error", first["level"])
	assert.Equal(t, "end-session", first["command"])
	assert.Equal(t, "no active session", first["message"])
	assert.NotContains(t, first, "payload")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "success", second["level"])
	assert.Equal(t, map[string]any{"arg": float64(42)}, second["payload"])
}

func TestWriter_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatText)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Notify(Success("", "Surface loaded", nil))
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, "Success: Surface loaded", line)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(Success("", "Session started", nil))
	r.Notify(Success("", "Surface loaded", nil))
	r.Notify(Success("", "Surface loaded", nil))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Count("Surface loaded"))
	assert.Equal(t, []string{"Session started", "Surface loaded", "Surface loaded"}, r.Messages())

	all := r.All()
	all[0].Message = "mutated"
	assert.Equal(t, "Session started", r.All()[0].Message)

	r.Reset()
	assert.Zero(t, r.Len())
}

func TestFuncAndMulti(t *testing.T) {
	var got []string
	f := Func(func(n Notification) { got = append(got, n.Level.String()+":"+n.Message) })
	var rec Recorder

	Multi{f, &rec, Discard}.Notify(Failure("", "boom"))

	assert.Equal(t, []string{"error:boom"}, got)
	assert.Equal(t, 1, rec.Len())
}
