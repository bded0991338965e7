package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Frame layout, little-endian:
//
//	baseOffset uint64 | epoch uint32 | recordCount uint32 |
//	payloadLen uint32 | crc uint32 | payload
//
// The payload is the batch's records, each prefixed with its uint32 byte
// length. The crc covers the payload only. The header carries enough to
// resynchronize to batch boundaries without replaying the whole snapshot.
const (
	frameHeaderLen  = 24
	recordPrefixLen = 4
)

type frameHeader struct {
	baseOffset uint64
	epoch      uint32
	count      uint32
	payloadLen uint32
	crc        uint32
}

func putFrameHeader(dst []byte, h frameHeader) {
	binary.LittleEndian.PutUint64(dst[0:8], h.baseOffset)
	binary.LittleEndian.PutUint32(dst[8:12], h.epoch)
	binary.LittleEndian.PutUint32(dst[12:16], h.count)
	binary.LittleEndian.PutUint32(dst[16:20], h.payloadLen)
	binary.LittleEndian.PutUint32(dst[20:24], h.crc)
}

func parseFrameHeader(src []byte) frameHeader {
	return frameHeader{
		baseOffset: binary.LittleEndian.Uint64(src[0:8]),
		epoch:      binary.LittleEndian.Uint32(src[8:12]),
		count:      binary.LittleEndian.Uint32(src[12:16]),
		payloadLen: binary.LittleEndian.Uint32(src[16:20]),
		crc:        binary.LittleEndian.Uint32(src[20:24]),
	}
}

// FrameInfo describes one persisted batch frame without deserializing its
// records.
type FrameInfo struct {
	BaseOffset  uint64
	Epoch       uint32
	Records     uint32
	SizeInBytes int
}

// ScanFrames walks the frames of a raw snapshot in order, verifying CRCs
// and structure, and invokes fn for each frame. It fails with
// ErrCorruptSnapshot on any framing or checksum violation.
func ScanFrames(r io.Reader, fn func(FrameInfo) error) error {
	var hdr [frameHeaderLen]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: truncated frame header: %v", ErrCorruptSnapshot, err)
		}
		h := parseFrameHeader(hdr[:])
		payload := make([]byte, h.payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("%w: truncated frame payload: %v", ErrCorruptSnapshot, err)
		}
		if crc := crc32.ChecksumIEEE(payload); crc != h.crc {
			return fmt.Errorf("%w: frame crc mismatch at offset %d", ErrCorruptSnapshot, h.baseOffset)
		}
		if err := checkFramePayload(payload, h.count); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(FrameInfo{
				BaseOffset:  h.baseOffset,
				Epoch:       h.epoch,
				Records:     h.count,
				SizeInBytes: frameHeaderLen + int(h.payloadLen),
			}); err != nil {
				return err
			}
		}
	}
}

func checkFramePayload(payload []byte, count uint32) error {
	pos := 0
	for i := uint32(0); i < count; i++ {
		if pos+recordPrefixLen > len(payload) {
			return fmt.Errorf("%w: truncated record prefix", ErrCorruptSnapshot)
		}
		recLen := int(binary.LittleEndian.Uint32(payload[pos : pos+recordPrefixLen]))
		pos += recordPrefixLen
		if pos+recLen > len(payload) {
			return fmt.Errorf("%w: record overruns frame payload", ErrCorruptSnapshot)
		}
		pos += recLen
	}
	if pos != len(payload) {
		return fmt.Errorf("%w: trailing bytes after last record", ErrCorruptSnapshot)
	}
	return nil
}
