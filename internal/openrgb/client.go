package openrgb

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/glimmer/internal/color"
)

// Client is a connection to an OpenRGB SDK server. All requests are
// serialized over the single connection; methods are safe for concurrent
// use.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	log  *zap.Logger
}

// Connect dials the server and registers the client name. Logger may be
// nil.
func Connect(ctx context.Context, address string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("openrgb: connect %s: %w", address, err)
	}

	c := &Client{conn: conn, log: log}
	if err := c.setClientName("glimmer"); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info("connected to OpenRGB server", zap.String("address", address))
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// ControllerCount returns the number of controllers the server exposes.
func (c *Client) ControllerCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(0, cmdRequestControllerCount, nil); err != nil {
		return 0, err
	}
	payload, err := c.receive(cmdRequestControllerCount)
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, ErrShortPacket
	}
	return int(binary.LittleEndian.Uint32(payload)), nil
}

// Controller fetches the full description of controller id.
func (c *Client) Controller(id int) (*Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(uint32(id), cmdRequestControllerData, nil); err != nil {
		return nil, err
	}
	payload, err := c.receive(cmdRequestControllerData)
	if err != nil {
		return nil, err
	}
	dev, err := parseControllerData(id, payload)
	if err != nil {
		return nil, fmt.Errorf("openrgb: controller %d: %w", id, err)
	}
	return dev, nil
}

// Devices fetches every controller on the server.
func (c *Client) Devices() ([]*Device, error) {
	count, err := c.ControllerCount()
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, 0, count)
	for i := 0; i < count; i++ {
		dev, err := c.Controller(i)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// DeviceByName returns the first device whose name matches, ignoring case
// and surrounding whitespace.
func (c *Client) DeviceByName(name string) (*Device, error) {
	devices, err := c.Devices()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for _, dev := range devices {
		if strings.ToLower(strings.TrimSpace(dev.Name)) == want {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("openrgb: no device named %q", name)
}

// SetCustomMode switches a device into its direct-control custom mode.
func (c *Client) SetCustomMode(deviceID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(uint32(deviceID), cmdSetCustomMode, nil)
}

// UpdateLEDs pushes per-LED colors for the whole device.
func (c *Client) UpdateLEDs(deviceID int, colors []color.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(uint32(deviceID), cmdUpdateLEDs, encodeUpdateLEDs(colors))
}

// UpdateZoneLEDs pushes per-LED colors for one zone of a device.
func (c *Client) UpdateZoneLEDs(deviceID, zoneIdx int, colors []color.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(uint32(deviceID), cmdUpdateZoneLEDs, encodeUpdateZoneLEDs(zoneIdx, colors))
}

// setClientName registers this client with the server. The payload is the
// name with a trailing null, no length prefix.
func (c *Client) setClientName(name string) error {
	payload := append([]byte(name), 0)
	return c.send(0, cmdSetClientName, payload)
}

// send writes one packet. Callers must hold c.mu.
func (c *Client) send(device, packet uint32, payload []byte) error {
	buf := encodeHeader(header{device: device, packet: packet, length: uint32(len(payload))})
	buf = append(buf, payload...)
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("openrgb: send packet %d: %w", packet, err)
	}
	return nil
}

// receive reads packets until one matches the expected ID, skipping
// server-initiated notifications such as device-list updates. Callers must
// hold c.mu.
func (c *Client) receive(want uint32) ([]byte, error) {
	for {
		hdr := make([]byte, headerSize)
		if _, err := io.ReadFull(c.conn, hdr); err != nil {
			return nil, fmt.Errorf("openrgb: read header: %w", err)
		}
		h, err := decodeHeader(hdr)
		if err != nil {
			return nil, err
		}

		payload := make([]byte, h.length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return nil, fmt.Errorf("openrgb: read payload: %w", err)
		}

		if h.packet == want {
			return payload, nil
		}
		if h.packet == cmdDeviceListUpdated {
			c.log.Debug("device list updated notification")
			continue
		}
		c.log.Debug("skipping unexpected packet", zap.Uint32("packet", h.packet))
	}
}
