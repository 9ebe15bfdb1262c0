// Package surface provides the job bodies behind the design operations.
// The computation is simulated: each increment folds the operation
// name, its argument and the step index into a BLAKE2b-256 digest, so
// two runs with the same input produce the same summary.
package surface

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"mosaic/internal/worker"
)

// Operation names, used both as notification commands and as the key
// under which a session stores the result.
const (
	OpLoadSurface      = "load-surface"
	OpUpdateLayers     = "update-layers"
	OpGetPreviewPoints = "get-preview-points"
	OpCreateDesign     = "create-design"
)

// ErrNegativeArg is returned by the first step of a job created with a
// negative argument.
var ErrNegativeArg = errors.New("argument must not be negative")

// Summary is the result of a finished job.
type Summary struct {
	Operation string `json:"operation"`
	Arg       int    `json:"arg"`
	Steps     int    `json:"steps"`
	Digest    string `json:"digest"`
}

func (s Summary) String() string {
	d := s.Digest
	if len(d) > 12 {
		d = d[:12]
	}
	return fmt.Sprintf("%s arg=%d steps=%d digest=%s", s.Operation, s.Arg, s.Steps, d)
}

// Job accumulates one operation's digest.  Step and Result must be
// called from a single goroutine.
type Job struct {
	op    string
	arg   int
	steps int
	h     hash.Hash
	buf   [8]byte
}

// NewJob returns a job for op with the given argument.
func NewJob(op string, arg int) *Job {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	h.Write([]byte(op))
	j := &Job{op: op, arg: arg, h: h}
	j.writeInt(int64(arg))
	return j
}

func (j *Job) writeInt(v int64) {
	binary.BigEndian.PutUint64(j.buf[:], uint64(v))
	j.h.Write(j.buf[:])
}

// Step folds increment i into the digest.
func (j *Job) Step(_ *worker.Token, i int) error {
	if j.arg < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeArg, j.arg)
	}
	j.writeInt(int64(i))
	j.steps++
	return nil
}

// Result returns the summary of the increments performed so far.
func (j *Job) Result() Summary {
	return Summary{
		Operation: j.op,
		Arg:       j.arg,
		Steps:     j.steps,
		Digest:    hex.EncodeToString(j.h.Sum(nil)),
	}
}

var _ worker.Job = (*Job)(nil)
