// Package container implements the signed container that wraps every message
// on the wire.
//
// Layout (all integers big-endian):
//
//	+--------+-----------+-----------+-----------------+
//	| tag[4] | size (u32)| crc (u32) | payload (size)  |
//	+--------+-----------+-----------+-----------------+
//
// The checksum is CRC-32C (Castagnoli) over the header with the crc field set
// to zero, followed by the payload.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// HeaderSize is the size of the container header in bytes.
const HeaderSize = 12

// MaxPayloadSize bounds the payload a container may announce.
const MaxPayloadSize = 16 << 20

// Tag identifies the payload type carried by a container.
type Tag [4]byte

// String returns the tag as text.
func (t Tag) String() string {
	return string(t[:])
}

// Container errors.
var (
	ErrTooShort     = errors.New("container: data shorter than header")
	ErrSizeMismatch = errors.New("container: size field disagrees with data length")
	ErrTooLarge     = errors.New("container: payload exceeds maximum size")
	ErrChecksum     = errors.New("container: checksum mismatch")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Encode builds a container around payload.
func Encode(tag Tag, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:4], tag[:])
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	binary.BigEndian.PutUint32(buf[8:12], checksum(buf))
	return buf, nil
}

// Decode verifies data and returns its tag and payload. The payload aliases data.
//
// The size check runs before the checksum so that a truncated or padded
// container is reported as ErrSizeMismatch rather than ErrChecksum.
func Decode(data []byte) (Tag, []byte, error) {
	var tag Tag
	if len(data) < HeaderSize {
		return tag, nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}
	copy(tag[:], data[0:4])

	size := binary.BigEndian.Uint32(data[4:8])
	if size > MaxPayloadSize {
		return tag, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	if int(size) != len(data)-HeaderSize {
		return tag, nil, fmt.Errorf("%w: header says %d, have %d", ErrSizeMismatch, size, len(data)-HeaderSize)
	}

	if binary.BigEndian.Uint32(data[8:12]) != checksum(data) {
		return tag, nil, ErrChecksum
	}
	return tag, data[HeaderSize:], nil
}

// PeekTag returns the tag without verifying the container.
func PeekTag(data []byte) (Tag, error) {
	var tag Tag
	if len(data) < HeaderSize {
		return tag, fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}
	copy(tag[:], data[0:4])
	return tag, nil
}

// PayloadSize returns the payload length announced by a header, so that a
// stream reader knows how many bytes follow. Only the header is inspected.
func PayloadSize(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooShort, len(header))
	}
	size := binary.BigEndian.Uint32(header[4:8])
	if size > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return int(size), nil
}

// Reseal recomputes the checksum of data in place. The size field is left as is.
func Reseal(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}
	binary.BigEndian.PutUint32(data[8:12], checksum(data))
	return nil
}

func checksum(data []byte) uint32 {
	var zero [4]byte
	crc := crc32.Update(0, castagnoli, data[0:8])
	crc = crc32.Update(crc, castagnoli, zero[:])
	return crc32.Update(crc, castagnoli, data[HeaderSize:])
}
