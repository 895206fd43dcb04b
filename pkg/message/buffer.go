package message

import (
	"encoding/binary"
	"fmt"
)

// reader consumes a body front to back. The first failure sticks.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTooShort, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// bytes16 reads a u16 length-prefixed field and returns a copy.
func (r *reader) bytes16() []byte {
	n := r.u16()
	return clone(r.take(int(n)))
}

// bytes32 reads a u32 length-prefixed field and returns a copy.
func (r *reader) bytes32() []byte {
	n := r.u32()
	if r.err == nil && uint64(n) > uint64(len(r.buf)-r.off) {
		r.err = fmt.Errorf("%w: field of %d bytes at offset %d", ErrTooShort, n, r.off)
		return nil
	}
	return clone(r.take(int(n)))
}

// finish reports the sticky error or any unread bytes.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(r.buf)-r.off)
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

func appendBytes16(buf, field []byte) ([]byte, error) {
	if len(field) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(field))
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(field)))
	return append(buf, field...), nil
}

func appendBytes32(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}
