package openrgb

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/glimmer/internal/color"
)

// fakeServer is an in-process OpenRGB SDK server speaking just enough of
// the protocol for the client tests.
type fakeServer struct {
	ln net.Listener

	mu       sync.Mutex
	name     string   // registered client name
	custom   []int    // devices switched to custom mode
	updates  [][]byte // raw UpdateLEDs payloads
	zoneUpds [][]byte // raw UpdateZoneLEDs payloads
	notify   bool     // inject a device-list-updated packet before replies
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) addr() string { return s.ln.Addr().String() }

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	for {
		hdr := make([]byte, headerSize)
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		h, err := decodeHeader(hdr)
		if err != nil {
			return
		}
		payload := make([]byte, h.length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		s.mu.Lock()
		notify := s.notify
		s.mu.Unlock()

		reply := func(packet uint32, body []byte) {
			if notify {
				conn.Write(encodeHeader(header{packet: cmdDeviceListUpdated}))
			}
			out := encodeHeader(header{device: h.device, packet: packet, length: uint32(len(body))})
			conn.Write(append(out, body...))
		}

		switch h.packet {
		case cmdSetClientName:
			s.mu.Lock()
			s.name = strings.TrimRight(string(payload), "\x00")
			s.mu.Unlock()
		case cmdRequestControllerCount:
			body := make([]byte, 4)
			binary.LittleEndian.PutUint32(body, 1)
			reply(cmdRequestControllerCount, body)
		case cmdRequestControllerData:
			reply(cmdRequestControllerData, controllerBlob())
		case cmdSetCustomMode:
			s.mu.Lock()
			s.custom = append(s.custom, int(h.device))
			s.mu.Unlock()
		case cmdUpdateLEDs:
			s.mu.Lock()
			s.updates = append(s.updates, payload)
			s.mu.Unlock()
		case cmdUpdateZoneLEDs:
			s.mu.Lock()
			s.zoneUpds = append(s.zoneUpds, payload)
			s.mu.Unlock()
		}
	}
}

func dialFake(t *testing.T, s *fakeServer) *Client {
	t.Helper()
	c, err := Connect(context.Background(), s.addr(), nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnectRegistersName(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	// Registration has no reply; a request that does have one proves the
	// name packet was received first on the same ordered connection.
	if _, err := c.ControllerCount(); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name != "glimmer" {
		t.Errorf("registered name = %q, want glimmer", s.name)
	}
}

func TestControllerCount(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	n, err := c.ControllerCount()
	if err != nil {
		t.Fatalf("ControllerCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ControllerCount() = %d, want 1", n)
	}
}

func TestDevices(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	devices, err := c.Devices()
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(Devices()) = %d, want 1", len(devices))
	}
	if devices[0].Name != "Test Strip" {
		t.Errorf("Name = %q", devices[0].Name)
	}
}

func TestDeviceByName(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	dev, err := c.DeviceByName("  test strip ")
	if err != nil {
		t.Fatalf("DeviceByName failed: %v", err)
	}
	if dev.ID != 0 {
		t.Errorf("ID = %d, want 0", dev.ID)
	}

	if _, err := c.DeviceByName("nope"); err == nil {
		t.Error("DeviceByName(nope) succeeded")
	}
}

func TestReceiveSkipsNotifications(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	s.mu.Lock()
	s.notify = true
	s.mu.Unlock()

	if _, err := c.ControllerCount(); err != nil {
		t.Fatalf("ControllerCount with interleaved notification failed: %v", err)
	}
}

func TestDeviceZoneShow(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	dev, err := c.Controller(0)
	if err != nil {
		t.Fatal(err)
	}
	info, ok := dev.LinearZone()
	if !ok {
		t.Fatal("test device has no linear zone")
	}

	z := NewDeviceZone(c, dev, info)
	if z.Len() != int(info.LEDCount) {
		t.Fatalf("Len() = %d, want %d", z.Len(), info.LEDCount)
	}

	z.SetColor(0, color.Red)
	if err := z.Show(); err != nil {
		t.Fatalf("Show failed: %v", err)
	}

	payload := waitForPayload(t, s, &s.zoneUpds)
	if got := binary.LittleEndian.Uint32(payload[4:8]); got != uint32(info.Index) {
		t.Errorf("zone index = %d, want %d", got, info.Index)
	}
	if got := binary.LittleEndian.Uint32(payload[10:14]); got != encodeColor(color.Red) {
		t.Errorf("first color = %#x", got)
	}
}

func TestVirtualZone(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	dev, err := c.Controller(0)
	if err != nil {
		t.Fatal(err)
	}

	z, err := NewVirtualZone(c, dev)
	if err != nil {
		t.Fatalf("NewVirtualZone failed: %v", err)
	}
	if z.Len() != len(dev.LEDs) {
		t.Fatalf("Len() = %d, want %d", z.Len(), len(dev.LEDs))
	}

	// Seeded from the device's current colors.
	if got := z.Color(0); got != color.Red {
		t.Errorf("Color(0) = %v, want red", got)
	}

	if err := z.Show(); err != nil {
		t.Fatal(err)
	}
	waitForPayload(t, s, &s.updates)

	s.mu.Lock()
	custom := len(s.custom)
	s.mu.Unlock()
	if custom != 1 {
		t.Errorf("custom mode set %d times, want 1", custom)
	}
}

func TestVirtualZoneNoLEDs(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	if _, err := NewVirtualZone(c, &Device{Name: "empty"}); err == nil {
		t.Error("NewVirtualZone on an empty device succeeded")
	}
}

func TestSelectZonePrefersLinear(t *testing.T) {
	s := startFakeServer(t)
	c := dialFake(t, s)

	dev, err := c.Controller(0)
	if err != nil {
		t.Fatal(err)
	}

	z, err := SelectZone(c, dev)
	if err != nil {
		t.Fatalf("SelectZone failed: %v", err)
	}
	info, _ := dev.LinearZone()
	if z.Len() != int(info.LEDCount) {
		t.Errorf("Len() = %d, want the linear zone's %d", z.Len(), info.LEDCount)
	}
}

// waitForPayload spins until the server has recorded at least one payload
// in the given slice. Update commands have no reply, so the client returns
// before the server has necessarily read them.
func waitForPayload(t *testing.T, s *fakeServer, slot *[][]byte) []byte {
	t.Helper()
	for i := 0; i < 2000; i++ {
		s.mu.Lock()
		if len(*slot) > 0 {
			p := (*slot)[0]
			s.mu.Unlock()
			return p
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server never received the update")
	return nil
}
