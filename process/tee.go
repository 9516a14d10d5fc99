package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// Stream identifies one of a child's output streams.
type Stream int

const (
	Stdout Stream = iota + 1
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// combinedBuffer interleaves both output streams in arrival order.
type combinedBuffer struct {
	mu  sync.RWMutex
	buf bytes.Buffer
}

func (c *combinedBuffer) write(p []byte) {
	c.mu.Lock()
	c.buf.Write(p)
	c.mu.Unlock()
}

func (c *combinedBuffer) snapshot() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bytes.Clone(c.buf.Bytes())
}

// Tee captures one output stream of a child process and optionally forwards
// it to a passthrough writer as it arrives.
//
// Every chunk is appended to the capture buffer before it is forwarded, and
// forwarding completes before the next chunk is read. A failing passthrough
// writer is recorded and dropped; capture continues.
type Tee struct {
	stream  Stream
	capture bool

	mu  sync.RWMutex
	buf bytes.Buffer

	passthrough io.Writer
	passErr     error
	combined    *combinedBuffer

	// onPassthroughErr is called once, from the draining goroutine.
	onPassthroughErr func(Stream, error)

	// read counts bytes drained; stable once done is closed.
	read int64

	done      chan struct{}
	closeOnce sync.Once
}

func newTee(stream Stream, capture bool, passthrough io.Writer, combined *combinedBuffer) *Tee {
	return &Tee{
		stream:      stream,
		capture:     capture,
		passthrough: passthrough,
		combined:    combined,
		done:        make(chan struct{}),
	}
}

// Write appends p to the capture buffer and forwards it to the passthrough
// writer. It never fails.
func (t *Tee) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	if t.capture {
		t.buf.Write(p)
	}
	w := t.passthrough
	t.mu.Unlock()

	if t.combined != nil {
		t.combined.write(p)
	}

	if w != nil {
		if err := writeAll(w, p); err != nil {
			t.mu.Lock()
			t.passErr = err
			t.passthrough = nil
			t.mu.Unlock()
			if t.onPassthroughErr != nil {
				t.onPassthroughErr(t.stream, err)
			}
		}
	}
	return len(p), nil
}

func writeAll(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// drain copies r into the tee in chunks of up to chunk bytes until r reports
// end of stream, then marks the tee done. Read errors end the stream; the
// error is returned unless it is io.EOF or the result of closing r.
func (t *Tee) drain(r io.Reader, chunk int) (int64, error) {
	defer t.close()

	if chunk <= 0 {
		chunk = defaultReadChunkSize
	}
	buf := make([]byte, chunk)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			t.read = total
			_, _ = t.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return total, nil
			}
			return total, err
		}
	}
}

// Snapshot returns a copy of everything captured so far.
func (t *Tee) Snapshot() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return bytes.Clone(t.buf.Bytes())
}

// Len returns the number of bytes captured so far.
func (t *Tee) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buf.Len()
}

// PassthroughErr returns the error that stopped forwarding, if any.
func (t *Tee) PassthroughErr() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.passErr
}

// Done is closed once the stream reached its end.
func (t *Tee) Done() <-chan struct{} {
	return t.done
}

func (t *Tee) close() {
	t.closeOnce.Do(func() { close(t.done) })
}

// syncWriter serializes writes from both tees when they forward to the same
// destination.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
