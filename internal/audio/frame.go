package audio

// Framer slices a continuous sample stream into fixed-size frames.
// Samples accumulate until a frame fills, then the frame is emitted and
// a fresh buffer starts. No sample is emitted twice or dropped; a
// partially filled frame is only ever discarded by Reset.
type Framer struct {
	size int
	buf  []float32
}

// NewFramer creates a framer emitting frames of size samples.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = 1024
	}
	return &Framer{size: size, buf: make([]float32, 0, size)}
}

// Size returns the frame size in samples.
func (f *Framer) Size() int { return f.size }

// Pending returns how many samples are waiting in the partial frame.
func (f *Framer) Pending() int { return len(f.buf) }

// Push appends samples and returns every frame completed by them,
// in order. The returned frames are independent copies.
func (f *Framer) Push(samples []float32) [][]float32 {
	var frames [][]float32
	for len(samples) > 0 {
		n := f.size - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]

		if len(f.buf) == f.size {
			frame := make([]float32, f.size)
			copy(frame, f.buf)
			frames = append(frames, frame)
			f.buf = f.buf[:0]
		}
	}
	return frames
}

// Reset discards any partially filled frame. Called on stop so a torn
// frame never reaches the wire.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
