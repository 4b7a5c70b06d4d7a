package openrgb

import (
	"fmt"

	"github.com/dshills/glimmer/internal/color"
	"github.com/dshills/glimmer/internal/zone"
)

// NewDeviceZone builds a zone backed by one physical zone of a device.
// Show commits the buffer with an update-zone-LEDs command.
func NewDeviceZone(c *Client, dev *Device, info ZoneInfo) zone.Zone {
	return zone.NewBuffer(int(info.LEDCount), func(colors []color.Color) error {
		return c.UpdateZoneLEDs(dev.ID, info.Index, colors)
	})
}

// NewVirtualZone builds a linear zone spanning every LED of a device,
// emulating a linear strip on devices without one. The device is switched
// to its custom mode so per-LED updates take effect, and the buffer is
// seeded from the device's current colors.
func NewVirtualZone(c *Client, dev *Device) (zone.Zone, error) {
	if len(dev.LEDs) == 0 {
		return nil, fmt.Errorf("openrgb: device %q has no LEDs to animate", dev.Name)
	}

	if err := c.SetCustomMode(dev.ID); err != nil {
		return nil, fmt.Errorf("openrgb: set custom mode on %q: %w", dev.Name, err)
	}

	buf := zone.NewBuffer(len(dev.LEDs), func(colors []color.Color) error {
		return c.UpdateLEDs(dev.ID, colors)
	})
	for i := range dev.LEDs {
		if i < len(dev.Colors) {
			buf.SetColor(i, dev.Colors[i])
		}
	}
	return buf, nil
}

// SelectZone picks the zone effects render to: the device's first real
// linear zone if it has one, otherwise a virtual per-LED zone.
func SelectZone(c *Client, dev *Device) (zone.Zone, error) {
	if info, ok := dev.LinearZone(); ok {
		return NewDeviceZone(c, dev, info), nil
	}
	return NewVirtualZone(c, dev)
}
