package downloader

import (
	"bytes"
	"regexp"
	"strconv"
	"sync"
)

// ProgressCallback receives the latest percentage reported by the fetch stage.
type ProgressCallback func(percentage float64)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// ParseProgress returns the last percentage found in text.
func ParseProgress(text string) (float64, bool) {
	matches := percentPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	pct, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// progressWriter splits tool output into lines on '\r' or '\n', reports any
// percentage found per line, and keeps a bounded tail for diagnostics.
type progressWriter struct {
	onProgress ProgressCallback
	tail       *tailBuffer
	partial    []byte
}

func newProgressWriter(onProgress ProgressCallback, tail *tailBuffer) *progressWriter {
	return &progressWriter{onProgress: onProgress, tail: tail}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.tail.Write(p)
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexAny(w.partial, "\r\n")
		if i < 0 {
			break
		}
		w.emit(w.partial[:i])
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

// Flush reports any trailing line without terminator.
func (w *progressWriter) Flush() {
	if len(w.partial) > 0 {
		w.emit(w.partial)
		w.partial = nil
	}
}

func (w *progressWriter) emit(line []byte) {
	if w.onProgress == nil || len(line) == 0 {
		return
	}
	if pct, ok := ParseProgress(string(line)); ok {
		w.onProgress(pct)
	}
}

const defaultTailSize = 8 << 10

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}
