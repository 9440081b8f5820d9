package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// RawLogger records the byte buffers a plan consumes and produces.
type RawLogger interface {
	// Log writes data; in is true for command (request) bytes and false for
	// response bytes.
	Log(in bool, data []byte)
}

type rawLogger struct {
	w   io.Writer
	mu  sync.Mutex
	seq int
}

// NewRaw returns a RawLogger writing to w. A nil w discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes a header line followed by a hex dump with offsets.
func (r *rawLogger) Log(in bool, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}
	dir := "rsp"
	if in {
		dir = "cmd"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	_, _ = fmt.Fprintf(r.w, "#%d %s %d bytes\n", r.seq, dir, len(data))
	_, _ = io.WriteString(r.w, hex.Dump(data))
}
