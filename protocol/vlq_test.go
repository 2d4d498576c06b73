package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		value    int32
		expected []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{96, []byte{0x80, 0x60}},
		{127, []byte{0x80, 0x7F}},
		{128, []byte{0x81, 0x00}},
		{0x8C, []byte{0x81, 0x0C}},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		if !bytes.Equal(output.Result(), tc.expected) {
			t.Errorf("Encode %d: expected % X, got % X", tc.value, tc.expected, output.Result())
		}

		data := output.Result()
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Decode %d: %v", tc.value, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("Expected %d, got %d", tc.value, decoded)
		}
		if len(data) != 0 {
			t.Errorf("Decode %d left %d bytes", tc.value, len(data))
		}
	}
}

func TestVLQUintRoundTrip(t *testing.T) {
	for _, expected := range []uint32{0, 1, 131, 65535, 1000000, 0xFFFFFFFF} {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("Expected %d, got %d", expected, decoded)
		}
	}
}

func TestVLQBytesAndString(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQBytes(output, []byte{0x1F, 0x22, 0x00, 0x00})
	EncodeVLQString(output, "extended")

	data := output.Result()
	b, err := DecodeVLQBytes(&data)
	if err != nil {
		t.Fatalf("DecodeVLQBytes: %v", err)
	}
	if !bytes.Equal(b, []byte{0x1F, 0x22, 0x00, 0x00}) {
		t.Errorf("Expected 1F 22 00 00, got % X", b)
	}

	s, err := DecodeVLQString(&data)
	if err != nil {
		t.Fatalf("DecodeVLQString: %v", err)
	}
	if s != "extended" {
		t.Errorf("Expected 'extended', got '%s'", s)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80} // Continuation with nothing following
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	data = []byte{0x05, 0x01} // Length 5, one byte present
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
