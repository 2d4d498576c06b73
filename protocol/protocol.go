// Package protocol implements the framed telemetry link between the
// emulator firmware and the host tool.
//
// A frame is: length, sequence, VLQ payload, CRC16 (big endian), 0x7E.
// Payloads are a sequence of messages, each a VLQ message ID followed by
// its VLQ encoded arguments.
package protocol

// Version is the telemetry protocol version reported in the dictionary
const Version = "0.2.0"

// Frame layout
const (
	MessageMax         = 512 // Output scratch size; holds several frames per flush
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	// Sequence numbers cycle through the low nibble
	MessageSeqMask = 0x0F
)

// nextSeq returns the sequence number following seq
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
