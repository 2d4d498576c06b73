package protocol

import (
	"bytes"
	"errors"
	"testing"
)

type recordedCommand struct {
	id   uint16
	args []byte
}

// newTestTransport returns a transport that records each dispatched command
// and consumes one VLQ argument per command
func newTestTransport() (*Transport, *ScratchOutput, *[]recordedCommand) {
	out := NewScratchOutput()
	var got []recordedCommand
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		before := *data
		if _, err := DecodeVLQUint(data); err != nil {
			return err
		}
		got = append(got, recordedCommand{cmdID, before[:len(before)-len(*data)]})
		return nil
	})
	return tr, out, &got
}

func ackFrame(seq uint8) []byte {
	return AppendFrame(nil, seq, nil)
}

func TestTransportDispatchAndAck(t *testing.T) {
	tr, out, got := newTestTransport()

	input := NewSliceInputBuffer(AppendFrame(nil, MessageDest, []byte{0x03, 0x2A}))
	tr.Receive(input)

	if len(*got) != 1 || (*got)[0].id != 3 || !bytes.Equal((*got)[0].args, []byte{0x2A}) {
		t.Fatalf("Expected command 3 with arg 0x2A, got %+v", *got)
	}
	if !bytes.Equal(out.Result(), ackFrame(MessageDest+1)) {
		t.Errorf("Expected ack for seq 0x11, got % X", out.Result())
	}
	if input.Available() != 0 {
		t.Errorf("Expected input consumed, %d bytes left", input.Available())
	}
}

func TestTransportPartialFrame(t *testing.T) {
	tr, out, got := newTestTransport()
	frame := AppendFrame(nil, MessageDest, []byte{0x01, 0x05})

	input := NewReceiveBuffer(64)
	input.Write(frame[:4])
	tr.Receive(input)
	if len(*got) != 0 || out.CurPosition() != 0 {
		t.Fatal("Partial frame must not be dispatched or acked")
	}
	if input.Available() != 4 {
		t.Errorf("Partial frame must stay buffered, have %d bytes", input.Available())
	}

	input.Write(frame[4:])
	tr.Receive(input)
	if len(*got) != 1 {
		t.Errorf("Expected 1 command after completing frame, got %d", len(*got))
	}
}

func TestTransportSequenceMismatch(t *testing.T) {
	tr, out, got := newTestTransport()

	tr.Receive(NewSliceInputBuffer(AppendFrame(nil, MessageDest, []byte{0x01, 0x00})))
	out.Reset()

	// Retransmission of an already processed sequence: nak with expected seq
	tr.Receive(NewSliceInputBuffer(AppendFrame(nil, MessageDest+5, []byte{0x01, 0x00})))
	if len(*got) != 1 {
		t.Errorf("Out of order frame must be ignored, got %d commands", len(*got))
	}
	if !bytes.Equal(out.Result(), ackFrame(MessageDest+1)) {
		t.Errorf("Expected nak naming seq 0x11, got % X", out.Result())
	}
}

func TestTransportResyncAfterCorruption(t *testing.T) {
	tr, out, got := newTestTransport()

	bad := AppendFrame(nil, MessageDest, []byte{0x01, 0x00})
	bad[2] ^= 0xFF // Break the CRC
	good := AppendFrame(nil, MessageDest, []byte{0x02, 0x07})

	tr.Receive(NewSliceInputBuffer(append(bad, good...)))

	if len(*got) != 1 || (*got)[0].id != 2 {
		t.Fatalf("Expected only command 2 after resync, got %+v", *got)
	}
	if tr.Errors() == 0 {
		t.Error("Expected the corrupt frame to be counted")
	}
	// Resync ack followed by the ack for the good frame
	want := append(ackFrame(MessageDest), ackFrame(MessageDest+1)...)
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("Expected % X, got % X", want, out.Result())
	}
}

func TestTransportHostReset(t *testing.T) {
	tr, _, got := newTestTransport()
	resets := 0
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(NewSliceInputBuffer(AppendFrame(nil, MessageDest, []byte{0x01, 0x00})))
	tr.Receive(NewSliceInputBuffer(AppendFrame(nil, MessageDest, []byte{0x01, 0x00})))

	if resets != 1 {
		t.Errorf("Expected 1 reset, got %d", resets)
	}
	if len(*got) != 2 {
		t.Errorf("Expected both frames dispatched, got %d", len(*got))
	}
}

func TestTransportHandlerError(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		return errors.New("boom")
	})

	tr.Receive(NewSliceInputBuffer(AppendFrame(nil, MessageDest, []byte{0x01})))
	if tr.Errors() != 1 {
		t.Errorf("Expected 1 error, got %d", tr.Errors())
	}
	if !bytes.Equal(out.Result(), ackFrame(MessageDest+1)) {
		t.Errorf("Failed handler must still be acked, got % X", out.Result())
	}
}

func TestTransportSendCommand(t *testing.T) {
	tr, out, _ := newTestTransport()

	tr.SendCommand(4, func(output OutputBuffer) {
		EncodeVLQUint(output, 0x8C)
	})

	want := AppendFrame(nil, MessageDest, []byte{0x04, 0x81, 0x0C})
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("Expected % X, got % X", want, out.Result())
	}

	n, status := scanFrame(out.Result(), false)
	if status != scanOK || n != len(want) {
		t.Errorf("Encoded frame does not scan: n=%d status=%d", n, status)
	}
}
