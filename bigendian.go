package lms

import "encoding/binary"

func be16(x uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, x)
	return buf
}

func be32(x uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, x)
	return buf
}

func be64(x uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, x)
	return buf
}

func getBe16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func getBe32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func getBe64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
