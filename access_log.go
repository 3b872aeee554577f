package goVerify

import "sync"

// accessLog retains the most recent results in a fixed-size ring.
type accessLog struct {
	mu    sync.Mutex
	buf   []PipelineResult
	start int
	size  int
}

func newAccessLog(capacity int) *accessLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &accessLog{buf: make([]PipelineResult, capacity)}
}

func (l *accessLog) append(res PipelineResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = res
		l.size++
		return
	}
	l.buf[l.start] = res
	l.start = (l.start + 1) % len(l.buf)
}

func (l *accessLog) snapshot() []PipelineResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]PipelineResult, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

func (l *accessLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}
