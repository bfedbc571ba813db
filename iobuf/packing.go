package iobuf

import "encoding/binary"

// The binary packing helpers read/write 8/16/32/64-bit big-endian
// integers with defined signed conversion (two's-complement
// reinterpret), per spec.md §4.3. These back out-of-band control
// records (e.g. a resolver subprocess pipe's tag+payload framing, or a
// wire-level length prefix) that a few collaborators use atop the
// Buffer pipeline.

func PutUint8(b []byte, v uint8) { b[0] = v }
func GetUint8(b []byte) uint8    { return b[0] }

func PutInt8(b []byte, v int8) { b[0] = byte(v) }
func GetInt8(b []byte) int8    { return int8(b[0]) }

func PutUint16BE(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func GetUint16BE(b []byte) uint16    { return binary.BigEndian.Uint16(b) }

func PutInt16BE(b []byte, v int16) { binary.BigEndian.PutUint16(b, uint16(v)) }
func GetInt16BE(b []byte) int16    { return int16(binary.BigEndian.Uint16(b)) }

func PutUint32BE(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func GetUint32BE(b []byte) uint32    { return binary.BigEndian.Uint32(b) }

func PutInt32BE(b []byte, v int32) { binary.BigEndian.PutUint32(b, uint32(v)) }
func GetInt32BE(b []byte) int32    { return int32(binary.BigEndian.Uint32(b)) }

func PutUint64BE(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
func GetUint64BE(b []byte) uint64    { return binary.BigEndian.Uint64(b) }

func PutInt64BE(b []byte, v int64) { binary.BigEndian.PutUint64(b, uint64(v)) }
func GetInt64BE(b []byte) int64    { return int64(binary.BigEndian.Uint64(b)) }
