package protocol

// CRC16 is CRC-16/MCRF4XX (reflected CCITT, init 0xFFFF, no final xor),
// computed over the length, sequence and payload bytes of a frame
func CRC16(data []byte) uint16 {
	return CRC16Update(0xFFFF, data)
}

// CRC16Update continues a running CRC16 over data, so a frame can be
// checked as it arrives in pieces
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
