package engine

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// readChunkSize bounds each individual pipe read so one channel can never
// monopolize a reader while the other backs up.
const readChunkSize = 4096

// emitFunc receives ordered output fragments for one stream tag. It is
// invoked from exactly one goroutine per tag, and never after the cap has
// been breached. The fragment is safe to retain.
type emitFunc func(id StreamID, data []byte)

// multiplexer drains both output channels of a process concurrently,
// enforcing one combined byte cap across them. Each channel gets a
// dedicated reader doing short bounded reads, so neither pipe's buffer
// can fill and stall the child while the other is being read.
type multiplexer struct {
	capBytes int64 // 0 = uncapped
	total    atomic.Int64
	tripOnce sync.Once
	onCap    func()
}

func newMultiplexer(capBytes int64, onCap func()) *multiplexer {
	return &multiplexer{capBytes: capBytes, onCap: onCap}
}

// drainBoth starts one reader per channel and blocks until both reach
// end-of-data (or bail after cancellation).
func (m *multiplexer) drainBoth(ctx context.Context, stdout, stderr io.Reader, emit emitFunc) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.drain(ctx, stdout, StreamStdout, emit)
	}()
	go func() {
		defer wg.Done()
		m.drain(ctx, stderr, StreamStderr, emit)
	}()
	wg.Wait()
}

// drain reads one channel in short chunks until EOF, the cap trips, or
// the invocation is canceled. Bytes beyond the cap are never delivered
// or buffered.
func (m *multiplexer) drain(ctx context.Context, r io.Reader, id StreamID, emit emitFunc) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			keep, capped := m.account(int64(n))
			if keep > 0 {
				fragment := make([]byte, keep)
				copy(fragment, buf[:keep])
				emit(id, fragment)
			}
			if capped {
				m.trip()
				return
			}
		}
		if err != nil {
			// EOF, or the pipe was torn down by a kill.
			return
		}
		if ctx.Err() != nil {
			// Canceled: bytes produced after the kill signal are not
			// guaranteed to be captured.
			return
		}
	}
}

// account reserves n bytes against the combined cap. It returns how many
// of those bytes may still be delivered and whether the cap was breached.
func (m *multiplexer) account(n int64) (keep int64, capped bool) {
	if m.capBytes <= 0 {
		return n, false
	}
	newTotal := m.total.Add(n)
	if newTotal <= m.capBytes {
		return n, false
	}
	keep = n - (newTotal - m.capBytes)
	if keep < 0 {
		keep = 0
	}
	return keep, true
}

// trip fires the cap callback exactly once, no matter which reader (or
// both) crossed the line.
func (m *multiplexer) trip() {
	m.tripOnce.Do(func() {
		if m.onCap != nil {
			m.onCap()
		}
	})
}

// delivered returns the combined byte count delivered so far, clamped to
// the cap.
func (m *multiplexer) delivered() int64 {
	total := m.total.Load()
	if m.capBytes > 0 && total > m.capBytes {
		return m.capBytes
	}
	return total
}

// batchCollector accumulates the two channels into separate buffers.
// Each buffer is written by exactly one reader goroutine, so no locking
// is needed; reads happen only after drainBoth returns.
type batchCollector struct {
	stdout []byte
	stderr []byte
}

func (c *batchCollector) emit(id StreamID, data []byte) {
	switch id {
	case StreamStdout:
		c.stdout = append(c.stdout, data...)
	case StreamStderr:
		c.stderr = append(c.stderr, data...)
	}
}
