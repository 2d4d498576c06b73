package protocol

// InputBuffer is a queue of received bytes
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer accumulates outgoing frames. Frames are built in place, so
// the length byte is patched with Update after the payload is written.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer wraps data
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is a fixed-size OutputBuffer. Writes past the end are
// dropped and flagged.
type ScratchOutput struct {
	buf        [MessageMax]byte
	pos        int
	overflowed bool
}

// NewScratchOutput creates an empty scratch buffer
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.overflowed = true
	}
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the bytes written since the last Reset
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Overflowed reports whether any write was truncated since the last Reset
func (s *ScratchOutput) Overflowed() bool {
	return s.overflowed
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.overflowed = false
}

// ReceiveBuffer collects link input until whole frames can be parsed.
// Bytes stay contiguous, so Data never copies or allocates; Pop moves the
// unconsumed tail (at most one partial frame) to the front.
// It implements InputBuffer.
type ReceiveBuffer struct {
	buf []byte
	n   int
}

// NewReceiveBuffer creates a buffer holding up to capacity bytes
func NewReceiveBuffer(capacity int) *ReceiveBuffer {
	return &ReceiveBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count
func (r *ReceiveBuffer) Write(data []byte) int {
	n := copy(r.buf[r.n:], data)
	r.n += n
	return n
}

// PutByte appends one byte, reporting false when the buffer is full
func (r *ReceiveBuffer) PutByte(b byte) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[r.n] = b
	r.n++
	return true
}

// Data returns the buffered bytes. The slice is only valid until the next
// Write, PutByte or Pop.
func (r *ReceiveBuffer) Data() []byte {
	return r.buf[:r.n]
}

// Available returns the number of buffered bytes
func (r *ReceiveBuffer) Available() int {
	return r.n
}

// Free returns the space left for writing
func (r *ReceiveBuffer) Free() int {
	return len(r.buf) - r.n
}

// Pop discards n bytes from the front
func (r *ReceiveBuffer) Pop(n int) {
	if n >= r.n {
		r.n = 0
		return
	}
	if n <= 0 {
		return
	}
	r.n = copy(r.buf, r.buf[n:r.n])
}

// IsEmpty reports whether nothing is buffered
func (r *ReceiveBuffer) IsEmpty() bool {
	return r.n == 0
}

// Reset discards everything
func (r *ReceiveBuffer) Reset() {
	r.n = 0
}
