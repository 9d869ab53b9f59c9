package logger

import (
	"sync"
	"time"
)

// DefaultRingSize is how many lines the in-memory log keeps
const DefaultRingSize = 1000

// RingBuffer keeps the most recent output lines in memory, each stamped
// "[15:04:05] ", and pushes new lines to subscribers
type RingBuffer struct {
	mu     sync.RWMutex
	lines  []string
	start  int
	count  int
	now    func() time.Time
	subs   map[chan string]struct{}
	subBuf int
}

// NewRingBuffer creates a buffer holding up to size lines
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{
		lines:  make([]string, size),
		now:    time.Now,
		subs:   make(map[chan string]struct{}),
		subBuf: 256,
	}
}

// Append stores line, evicting the oldest when full
func (r *RingBuffer) Append(line string) {
	entry := "[" + r.now().Format("15:04:05") + "] " + line

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.start + r.count) % len(r.lines)
	r.lines[idx] = entry
	if r.count < len(r.lines) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.lines)
	}

	for ch := range r.subs {
		select {
		case ch <- entry:
		default:
			// slow subscriber; it can reload with Lines
		}
	}
}

// Lines returns the stored lines, oldest first
func (r *RingBuffer) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.lines[(r.start+i)%len(r.lines)]
	}
	return out
}

// Tail returns at most n of the newest lines, oldest first
func (r *RingBuffer) Tail(n int) []string {
	lines := r.Lines()
	if n > 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

// Len returns the number of stored lines
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear drops every stored line
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start, r.count = 0, 0
}

// Subscribe returns a channel receiving every line appended from now on,
// and a function that ends the subscription and closes the channel
func (r *RingBuffer) Subscribe() (<-chan string, func()) {
	ch := make(chan string, r.subBuf)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}
