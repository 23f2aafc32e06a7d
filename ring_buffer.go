package main

import (
	"sync"
)

// RingBuffer is a thread-safe circular buffer for float32 PCM samples.
// When full, the oldest samples are overwritten so the audio callback
// never blocks; a too-slow consumer loses history, not liveness.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []float32
	cap  int
	head int // next write index
	size int // valid samples
}

// NewRingBuffer creates a buffer holding capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buf: make([]float32, capacity),
		cap: capacity,
	}
}

// newRecordingBuffer sizes a RingBuffer for seconds of audio at rate Hz.
func newRecordingBuffer(seconds, rate int) *RingBuffer {
	return NewRingBuffer(seconds * rate)
}

// Write appends samples, dropping the oldest on overflow.
func (rb *RingBuffer) Write(samples []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(samples)
	if n >= rb.cap {
		// Input alone fills the buffer; keep only the newest cap samples.
		copy(rb.buf, samples[n-rb.cap:])
		rb.head = 0
		rb.size = rb.cap
		return
	}

	// Copy in at most two segments around the wrap point.
	first := rb.cap - rb.head
	if first > n {
		first = n
	}
	copy(rb.buf[rb.head:], samples[:first])
	copy(rb.buf, samples[first:])
	rb.head = (rb.head + n) % rb.cap
	rb.size += n
	if rb.size > rb.cap {
		rb.size = rb.cap
	}
}

// Drain returns all buffered samples oldest-first and resets the buffer.
// The returned slice is a copy, safe to hold after the call.
func (rb *RingBuffer) Drain() []float32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	out := make([]float32, rb.size)
	start := (rb.head - rb.size + rb.cap) % rb.cap
	first := copy(out, rb.buf[start:])
	if first < rb.size {
		copy(out[first:], rb.buf[:rb.size-first])
	}

	rb.head = 0
	rb.size = 0
	return out
}

// Len returns the number of samples currently buffered.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Seconds reports the buffered duration at rate Hz.
func (rb *RingBuffer) Seconds(rate int) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(rb.Len()) / float64(rate)
}
