package protocol

type scanStatus uint8

const (
	scanNeedMore scanStatus = iota // Frame incomplete, wait for more input
	scanOK                         // Complete frame with valid CRC
	scanBad                        // Framing error, resync required
)

// scanFrame checks whether data starts with a complete valid frame and
// returns its total length. With checkDest set the sequence byte must carry
// the host destination bits.
func scanFrame(data []byte, checkDest bool) (int, scanStatus) {
	if len(data) < MessageLengthMin {
		return 0, scanNeedMore
	}

	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return 0, scanBad
	}

	if checkDest && data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, scanBad
	}

	if len(data) < msgLen {
		return 0, scanNeedMore
	}

	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return 0, scanBad
	}

	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return 0, scanBad
	}

	return msgLen, scanOK
}

// skipToSync drops everything up to and including the next sync byte.
// It reports false (and returns nil) if no sync byte is present.
func skipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// AppendFrame appends a complete frame carrying payload to dst
func AppendFrame(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, uint8(MessageHeaderSize+len(payload)+MessageTrailerSize), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync)
}
