// Package openrgb implements a minimal client for the OpenRGB SDK server:
// enough of the wire protocol to enumerate devices, switch a device to its
// custom mode, and push per-LED colors. The effect engine depends only on
// the zone abstraction; this package is the device-side collaborator behind
// it.
package openrgb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dshills/glimmer/internal/color"
)

// Packet IDs of the OpenRGB network protocol (version 0 subset).
const (
	cmdRequestControllerCount uint32 = 0
	cmdRequestControllerData  uint32 = 1
	cmdSetClientName          uint32 = 50
	cmdDeviceListUpdated      uint32 = 100
	cmdUpdateLEDs             uint32 = 1050
	cmdUpdateZoneLEDs         uint32 = 1051
	cmdSetCustomMode          uint32 = 1100
)

// Zone types reported by the server.
const (
	ZoneTypeSingle int32 = 0
	ZoneTypeLinear int32 = 1
	ZoneTypeMatrix int32 = 2
)

// headerSize is the fixed packet header length: magic, device index,
// packet ID, payload length.
const headerSize = 16

var magic = [4]byte{'O', 'R', 'G', 'B'}

// ErrBadMagic is returned when a packet does not start with "ORGB".
var ErrBadMagic = errors.New("openrgb: bad packet magic")

// ErrShortPacket is returned when a payload ends before a field it should
// contain.
var ErrShortPacket = errors.New("openrgb: short packet")

// header is the fixed preamble of every packet in both directions. All
// integers on the wire are little-endian.
type header struct {
	device uint32
	packet uint32
	length uint32
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.device)
	binary.LittleEndian.PutUint32(buf[8:12], h.packet)
	binary.LittleEndian.PutUint32(buf[12:16], h.length)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, ErrShortPacket
	}
	if [4]byte(buf[0:4]) != magic {
		return header{}, ErrBadMagic
	}
	return header{
		device: binary.LittleEndian.Uint32(buf[4:8]),
		packet: binary.LittleEndian.Uint32(buf[8:12]),
		length: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// encodeColor packs a color as the server expects: 0x00BBGGRR.
func encodeColor(c color.Color) uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
}

func decodeColor(v uint32) color.Color {
	return color.Color{
		R: uint8(v),
		G: uint8(v >> 8),
		B: uint8(v >> 16),
	}
}

// encodeUpdateLEDs builds the UpdateLEDs payload: total size, color count,
// packed colors.
func encodeUpdateLEDs(colors []color.Color) []byte {
	size := 4 + 2 + 4*len(colors)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(colors)))
	for i, c := range colors {
		binary.LittleEndian.PutUint32(buf[6+4*i:], encodeColor(c))
	}
	return buf
}

// encodeUpdateZoneLEDs builds the UpdateZoneLEDs payload: total size, zone
// index, color count, packed colors.
func encodeUpdateZoneLEDs(zoneIdx int, colors []color.Color) []byte {
	size := 4 + 4 + 2 + 4*len(colors)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(zoneIdx))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(len(colors)))
	for i, c := range colors {
		binary.LittleEndian.PutUint32(buf[10+4*i:], encodeColor(c))
	}
	return buf
}

// decoder reads the length-prefixed fields of a controller data blob. The
// first decode error latches; subsequent reads return zero values.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated %s at offset %d", ErrShortPacket, what, d.off)
	}
}

func (d *decoder) u16() uint16 {
	if d.err != nil {
		return 0
	}
	if d.off+2 > len(d.buf) {
		d.fail("uint16")
		return 0
	}
	v := binary.LittleEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > len(d.buf) {
		d.fail("uint32")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *decoder) i32() int32 {
	return int32(d.u32())
}

// str reads a string field: uint16 length including the trailing null,
// then the bytes.
func (d *decoder) str() string {
	n := int(d.u16())
	if d.err != nil {
		return ""
	}
	if d.off+n > len(d.buf) {
		d.fail("string")
		return ""
	}
	s := d.buf[d.off : d.off+n]
	d.off += n
	// Drop the trailing null.
	if len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s)
}

// skip discards n bytes.
func (d *decoder) skip(n int) {
	if d.err != nil {
		return
	}
	if d.off+n > len(d.buf) {
		d.fail("skip")
		return
	}
	d.off += n
}
