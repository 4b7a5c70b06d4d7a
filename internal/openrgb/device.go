package openrgb

import (
	"github.com/dshills/glimmer/internal/color"
)

// Device is one RGB controller as described by the server.
type Device struct {
	ID          int // controller index on the server
	Type        int32
	Name        string
	Description string
	Version     string
	Serial      string
	Location    string
	ActiveMode  int32
	Modes       []Mode
	Zones       []ZoneInfo
	LEDs        []LED
	Colors      []color.Color
}

// Mode is one device mode (static, breathing, custom, ...).
type Mode struct {
	Name      string
	Value     int32
	Flags     uint32
	SpeedMin  uint32
	SpeedMax  uint32
	ColorsMin uint32
	ColorsMax uint32
	Speed     uint32
	Direction uint32
	ColorMode uint32
	Colors    []color.Color
}

// ZoneInfo describes one zone of a device.
type ZoneInfo struct {
	Index    int // zone index within the device
	Name     string
	Type     int32
	LEDsMin  uint32
	LEDsMax  uint32
	LEDCount uint32
}

// LED is one addressable LED of a device.
type LED struct {
	Name  string
	Value uint32
}

// parseControllerData decodes a protocol version 0 controller data blob.
func parseControllerData(id int, buf []byte) (*Device, error) {
	d := &decoder{buf: buf}

	d.u32() // total data size, already framed by the packet header

	dev := &Device{ID: id}
	dev.Type = d.i32()
	dev.Name = d.str()
	dev.Description = d.str()
	dev.Version = d.str()
	dev.Serial = d.str()
	dev.Location = d.str()

	numModes := int(d.u16())
	dev.ActiveMode = d.i32()
	for i := 0; i < numModes && d.err == nil; i++ {
		m := Mode{}
		m.Name = d.str()
		m.Value = d.i32()
		m.Flags = d.u32()
		m.SpeedMin = d.u32()
		m.SpeedMax = d.u32()
		m.ColorsMin = d.u32()
		m.ColorsMax = d.u32()
		m.Speed = d.u32()
		m.Direction = d.u32()
		m.ColorMode = d.u32()
		numColors := int(d.u16())
		for j := 0; j < numColors && d.err == nil; j++ {
			m.Colors = append(m.Colors, decodeColor(d.u32()))
		}
		dev.Modes = append(dev.Modes, m)
	}

	numZones := int(d.u16())
	for i := 0; i < numZones && d.err == nil; i++ {
		z := ZoneInfo{Index: i}
		z.Name = d.str()
		z.Type = d.i32()
		z.LEDsMin = d.u32()
		z.LEDsMax = d.u32()
		z.LEDCount = d.u32()
		matrixLen := int(d.u16())
		d.skip(matrixLen) // matrix map, unused here
		dev.Zones = append(dev.Zones, z)
	}

	numLEDs := int(d.u16())
	for i := 0; i < numLEDs && d.err == nil; i++ {
		l := LED{}
		l.Name = d.str()
		l.Value = d.u32()
		dev.LEDs = append(dev.LEDs, l)
	}

	numColors := int(d.u16())
	for i := 0; i < numColors && d.err == nil; i++ {
		dev.Colors = append(dev.Colors, decodeColor(d.u32()))
	}

	if d.err != nil {
		return nil, d.err
	}
	return dev, nil
}

// LinearZone returns the device's first linear zone, if it has one.
func (d *Device) LinearZone() (ZoneInfo, bool) {
	for _, z := range d.Zones {
		if z.Type == ZoneTypeLinear && z.LEDCount > 0 {
			return z, true
		}
	}
	return ZoneInfo{}, false
}
