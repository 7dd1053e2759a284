package wasm

import "github.com/wippyai/wasm-embed/wasm/internal/binary"

// LEB128 helpers shared with the text compiler, which emits instruction
// immediates into raw code bytes before handing them to the builder.

// AppendULEB128 appends v in unsigned LEB128 form.
func AppendULEB128(dst []byte, v uint32) []byte {
	return binary.AppendULEB128(dst, v)
}

// AppendSLEB128 appends v in signed LEB128 form.
func AppendSLEB128[T int32 | int64](dst []byte, v T) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// DecodeULEB128 decodes an unsigned LEB128 value and reports how many
// bytes it consumed.
func DecodeULEB128(data []byte) (uint32, int) {
	return binary.ULEB128(data)
}
