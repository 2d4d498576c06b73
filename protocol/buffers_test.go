package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 {
		t.Errorf("Expected 3 bytes available, got %d", buf.Available())
	}
	if buf.Data()[0] != 3 {
		t.Errorf("Expected first byte 3, got %d", buf.Data()[0])
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	if scratch.Result()[0] != 99 {
		t.Errorf("Expected first byte 99, got %d", scratch.Result()[0])
	}

	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2): expected [3 4 5], got %v", since)
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax-1))
	if scratch.Overflowed() {
		t.Fatal("Overflow flagged before the buffer was full")
	}

	scratch.Output([]byte{1, 2})
	if !scratch.Overflowed() {
		t.Error("Expected overflow to be flagged")
	}
	if scratch.CurPosition() != MessageMax {
		t.Errorf("Expected position %d, got %d", MessageMax, scratch.CurPosition())
	}

	scratch.Reset()
	if scratch.Overflowed() {
		t.Error("Reset should clear the overflow flag")
	}
}

func TestReceiveBuffer(t *testing.T) {
	rb := NewReceiveBuffer(10)
	if !rb.IsEmpty() {
		t.Error("New buffer should be empty")
	}

	if written := rb.Write([]byte{1, 2, 3, 4, 5}); written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}

	rb.Pop(2)
	if data := rb.Data(); !bytes.Equal(data, []byte{3, 4, 5}) {
		t.Errorf("Expected [3 4 5] after pop, got %v", data)
	}

	// Full capacity is usable
	if written := rb.Write(make([]byte, 12)); written != 7 {
		t.Errorf("Expected to write 7 more bytes, wrote %d", written)
	}
	if rb.Free() != 0 {
		t.Errorf("Expected no free space, got %d", rb.Free())
	}
	if rb.PutByte(9) {
		t.Error("PutByte succeeded on a full buffer")
	}

	rb.Pop(100)
	if !rb.IsEmpty() {
		t.Errorf("Expected empty after over-pop, have %d", rb.Available())
	}
}

func TestReceiveBufferPartialFrame(t *testing.T) {
	rb := NewReceiveBuffer(MessageLengthMax * 2)
	frame := AppendFrame(nil, MessageDest, []byte{1, 2, 3})

	// One whole frame then half of the next, byte by byte like the USB poll
	for _, b := range append(append([]byte{}, frame...), frame[:4]...) {
		if !rb.PutByte(b) {
			t.Fatal("PutByte failed")
		}
	}

	rb.Pop(len(frame))
	if data := rb.Data(); !bytes.Equal(data, frame[:4]) {
		t.Errorf("Partial frame not moved to the front: % X", data)
	}

	rb.Write(frame[4:])
	if data := rb.Data(); !bytes.Equal(data, frame) {
		t.Errorf("Reassembled frame % X, want % X", data, frame)
	}
}

func TestReceiveBufferDataDoesNotAllocate(t *testing.T) {
	rb := NewReceiveBuffer(64)
	rb.Write([]byte{1, 2, 3, 4})
	rb.Pop(1)

	allocs := testing.AllocsPerRun(100, func() {
		_ = rb.Data()
	})
	if allocs != 0 {
		t.Errorf("Data allocated %.0f times", allocs)
	}
}
