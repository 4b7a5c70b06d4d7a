package lua

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/glimmer/internal/color"
	"github.com/dshills/glimmer/internal/zone"
)

// Metatable type names for glimmer userdata.
const (
	zoneTypeName   = "glimmer.zone"
	cancelTypeName = "glimmer.cancel"
)

// registerZoneType registers the zone userdata metatable. A zone exposes:
//
//	zone:len()        -> number of LEDs
//	zone:get(i)       -> {r=, g=, b=} (i is zero-based)
//	zone:set(i, c)    -- c is a {r=, g=, b=} table
//	zone:show()       -- commit the buffer to the device
func registerZoneType(L *lua.LState) {
	mt := L.NewTypeMetatable(zoneTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"len":  zoneLen,
		"get":  zoneGet,
		"set":  zoneSet,
		"show": zoneShow,
	}))
}

// NewZone wraps a zone as Lua userdata.
func NewZone(L *lua.LState, z zone.Zone) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = z
	L.SetMetatable(ud, L.GetTypeMetatable(zoneTypeName))
	return ud
}

func checkZone(L *lua.LState) zone.Zone {
	ud := L.CheckUserData(1)
	if z, ok := ud.Value.(zone.Zone); ok {
		return z
	}
	L.ArgError(1, "zone expected")
	return nil
}

func checkIndex(L *lua.LState, z zone.Zone, n int) int {
	i := L.CheckInt(n)
	if i < 0 || i >= z.Len() {
		L.ArgError(n, "LED index out of range")
	}
	return i
}

func zoneLen(L *lua.LState) int {
	z := checkZone(L)
	L.Push(lua.LNumber(z.Len()))
	return 1
}

func zoneGet(L *lua.LState) int {
	z := checkZone(L)
	i := checkIndex(L, z, 2)
	L.Push(pushColor(L, z.Color(i)))
	return 1
}

func zoneSet(L *lua.LState) int {
	z := checkZone(L)
	i := checkIndex(L, z, 2)
	z.SetColor(i, checkColor(L, 3))
	return 0
}

func zoneShow(L *lua.LState) int {
	z := checkZone(L)
	if err := z.Show(); err != nil {
		L.RaiseError("zone show: %v", err)
	}
	return 0
}

// registerCancelType registers the cancel token metatable. A cancel token
// exposes:
//
//	cancel:is_set()    -> true once cancellation has been requested
//	cancel:wait(secs)  -> sleeps up to secs, returns true if cancelled
//
// Looped effects must poll the token at each iteration boundary and use
// wait for pacing instead of a fixed sleep, so a stop completes within one
// loop period.
func registerCancelType(L *lua.LState) {
	mt := L.NewTypeMetatable(cancelTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"is_set": cancelIsSet,
		"wait":   cancelWait,
	}))
}

// NewCancel wraps a context as a Lua cancel token.
func NewCancel(L *lua.LState, ctx context.Context) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = ctx
	L.SetMetatable(ud, L.GetTypeMetatable(cancelTypeName))
	return ud
}

func checkCancel(L *lua.LState) context.Context {
	ud := L.CheckUserData(1)
	if ctx, ok := ud.Value.(context.Context); ok {
		return ctx
	}
	L.ArgError(1, "cancel token expected")
	return nil
}

func cancelIsSet(L *lua.LState) int {
	ctx := checkCancel(L)
	L.Push(lua.LBool(ctx.Err() != nil))
	return 1
}

func cancelWait(L *lua.LState) int {
	ctx := checkCancel(L)
	secs := float64(L.CheckNumber(2))
	if secs < 0 {
		secs = 0
	}

	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		L.Push(lua.LTrue)
	case <-timer.C:
		L.Push(lua.LBool(ctx.Err() != nil))
	}
	return 1
}

// registerColorModule registers the color module:
//
//	color.rgb(r, g, b)  -> {r=, g=, b=}
//	color.hsv(h, s, v)  -> {r=, g=, b=} (h in degrees, s and v in [0,1])
func registerColorModule(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"rgb": colorRGB,
		"hsv": colorHSV,
	})
	L.SetGlobal("color", mod)
}

func colorRGB(L *lua.LState) int {
	r := L.CheckInt(1)
	g := L.CheckInt(2)
	b := L.CheckInt(3)
	L.Push(pushColor(L, color.New(clampByte(r), clampByte(g), clampByte(b))))
	return 1
}

func colorHSV(L *lua.LState) int {
	h := float64(L.CheckNumber(1))
	s := float64(L.CheckNumber(2))
	v := float64(L.CheckNumber(3))
	L.Push(pushColor(L, color.FromHSV(h, s, v)))
	return 1
}

// pushColor converts a color to a Lua {r=, g=, b=} table.
func pushColor(L *lua.LState, c color.Color) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("r", lua.LNumber(c.R))
	t.RawSetString("g", lua.LNumber(c.G))
	t.RawSetString("b", lua.LNumber(c.B))
	return t
}

// checkColor reads a {r=, g=, b=} table argument.
func checkColor(L *lua.LState, n int) color.Color {
	t := L.CheckTable(n)
	return color.New(
		clampByte(int(lua.LVAsNumber(t.RawGetString("r")))),
		clampByte(int(lua.LVAsNumber(t.RawGetString("g")))),
		clampByte(int(lua.LVAsNumber(t.RawGetString("b")))),
	)
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
