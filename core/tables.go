package core

// ResponseTable is a fixed, read-only reply image streamed back to the host.
// Tables are built once at package init and never written afterwards.
type ResponseTable struct {
	name string
	data []byte
}

// Security register layout
const (
	SecurityRegisterHeader  = 3   // Leading zero bytes
	SecurityRegisterPayload = 128 // Device-specific bytes after the header
	SecurityRegisterLen     = SecurityRegisterHeader + SecurityRegisterPayload

	ManufacturerIDLen = 4
)

var securityRegisterImage = [SecurityRegisterLen]byte{
	0, 0, 0,
	0x8d, 0x83, 0x5f, 0xf3, 0x8c, 0x7b, 0x77, 0x56, 0x35, 0x6b, 0xbd, 0xa5, 0x18, 0x10, 0x08, 0xde,
	0xe3, 0x4e, 0xca, 0xa1, 0xce, 0xf3, 0x0c, 0x8c, 0x31, 0x5e, 0x39, 0x25, 0xc2, 0x35, 0x46, 0x18,
	0x80, 0xbd, 0x7b, 0xe3, 0x46, 0x2d, 0x29, 0x31, 0xce, 0xca, 0x63, 0x77, 0x39, 0x67, 0x8c, 0x80,
	0x42, 0x88, 0xe7, 0x4e, 0x84, 0x6b, 0x77, 0x3d, 0xe7, 0xfb, 0xd6, 0x08, 0xbd, 0x35, 0x5a, 0x18,
	0x49, 0xc9, 0xbf, 0xf1, 0xe6, 0xd0, 0x16, 0xd7, 0x05, 0xc8, 0x60, 0x9b, 0x7e, 0xc1, 0x36, 0xf0,
	0x2a, 0x01, 0xe8, 0x5a, 0xe7, 0x29, 0xed, 0xd3, 0xae, 0x81, 0x2e, 0xa8, 0x16, 0xf0, 0x38, 0x6b,
	0x03, 0x49, 0xb3, 0x17, 0xec, 0x9c, 0xe4, 0xe5, 0x09, 0x07, 0x35, 0x2f, 0x98, 0xeb, 0x7e, 0xf4,
	0x27, 0xf0, 0x09, 0x6b, 0xb4, 0x9c, 0x5a, 0x8e, 0x7f, 0x03, 0xfd, 0xc7, 0x2e, 0x8a, 0x5d, 0x8d,
}

// Vendor code 0x1F, device code 0x22, trailing bytes reserved
var manufacturerIDImage = [ManufacturerIDLen]byte{0x1f, 0x22, 0x00, 0x00}

var (
	// SecurityRegister is the 131-byte image returned for the 0x77 opcode
	SecurityRegister = &ResponseTable{name: "security_register", data: securityRegisterImage[:]}

	// ManufacturerID is the 4-byte image returned for the 0x9F opcode
	ManufacturerID = &ResponseTable{name: "manufacturer_id", data: manufacturerIDImage[:]}
)

// Name returns the table name used in diagnostics and the dictionary
func (t *ResponseTable) Name() string {
	return t.name
}

// Len returns the number of bytes in the table
func (t *ResponseTable) Len() int {
	return len(t.data)
}

// Value returns the byte at index.
// An index outside [0, Len()) means the cursor invariant was broken; it panics.
func (t *ResponseTable) Value(index int) byte {
	if index < 0 || index >= len(t.data) {
		panic("response table " + t.name + ": index " + itoa(index) + " out of range")
	}
	return t.data[index]
}

// Bytes returns a copy of the table contents
func (t *ResponseTable) Bytes() []byte {
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out
}
