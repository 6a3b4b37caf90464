package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/sim"
)

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func newEngine(t *testing.T, dir string) (*Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := NewEngine(dir, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, logs
}

func newModule(t *testing.T, w *sim.World, name, script string) *plant.Module {
	t.Helper()
	m, err := plant.NewModule(w, w.Root(), plant.ModuleConfig{Name: name, Script: script})
	require.NoError(t, err)
	return m
}

func errorsLogged(logs *observer.ObservedLogs) int {
	return logs.FilterLevelExact(zapcore.ErrorLevel).Len()
}

const orderScript = `
function update_logic(m)
  local belt = m:equipment("belt")
  if m.ready then belt:set_speed(1) else belt:set_speed(0) end

  if m.order ~= 0 and m.order ~= m.memo.last_order then
    m.memo.orders = (m.memo.orders or 0) + 1
    if m.order == 4 then m:equipment("gate"):open() end
    m.msg = m.order
  end
  m.memo.last_order = m.order

  if m.order == 0 then m.busy = false end
end
`

func TestUpdateLogicDrivesEquipment(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "m1.lua", orderScript)
	e, logs := newEngine(t, dir)

	w := sim.NewWorld(zap.NewNop())
	m := newModule(t, w, "m1", "m1.lua")
	belt, err := plant.NewConveyor(w, m.ID(), plant.ConveyorConfig{Name: "belt", Length: 60, Orientation: geom.East})
	require.NoError(t, err)
	gate, err := plant.NewStopper(w, m.ID(), plant.StopperConfig{Name: "gate", Pos: geom.V(40, -5), Orientation: geom.East, AutoClose: true})
	require.NoError(t, err)
	require.NoError(t, e.Load(w))
	assert.Equal(t, 1, e.Attached())

	m.Status.SetReady(true)
	m.Status.Order = 4
	m.Status.Busy = true
	e.Update(w)

	assert.Equal(t, 1.0, belt.Speed)
	assert.False(t, gate.Closing(), "order 4 opens the gate")
	assert.Equal(t, int32(4), m.Status.Msg)
	assert.True(t, m.Status.Busy)

	// the order is edge detected through memo
	e.Update(w)
	memo := e.scripts[m].m.RawGetString("memo").(*lua.LTable)
	assert.Equal(t, lua.LNumber(1), memo.RawGetString("orders"))

	m.Status.Order = 0
	m.Status.SetReady(false)
	e.Update(w)
	assert.False(t, m.Status.Busy)
	assert.Equal(t, int32(4), m.Status.Msg)
	assert.Equal(t, 0.0, belt.Speed)
	assert.Zero(t, errorsLogged(logs))
}

func TestLuaErrorSkipsModuleLogic(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", `
function update_logic(m)
  m.msg = 9
  m.busy = false
  if m.order == 1 then error("boom") end
end
`)
	writeScript(t, dir, "good.lua", `
function update_logic(m)
  m.msg = 7
end
`)
	e, logs := newEngine(t, dir)
	w := sim.NewWorld(zap.NewNop())
	bad := newModule(t, w, "bad", "bad.lua")
	good := newModule(t, w, "good", "good.lua")

	bad.Status.Order = 1
	bad.Status.Busy = true
	e.Update(w)
	assert.Equal(t, int32(0), bad.Status.Msg, "failed tick writes nothing back")
	assert.True(t, bad.Status.Busy)
	assert.Equal(t, int32(7), good.Status.Msg, "other modules still run")
	assert.Equal(t, 1, errorsLogged(logs))

	e.Update(w)
	assert.Equal(t, 1, errorsLogged(logs), "a repeated error is logged once")

	bad.Status.Order = 2
	e.Update(w)
	assert.Equal(t, int32(9), bad.Status.Msg)
	assert.False(t, bad.Status.Busy)
}

func TestUnknownEquipmentRaises(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "m1.lua", `
function update_logic(m)
  m.msg = 3
  m:equipment("nope"):open()
end
`)
	e, logs := newEngine(t, dir)
	w := sim.NewWorld(zap.NewNop())
	m := newModule(t, w, "m1", "m1.lua")

	e.Update(w)
	assert.Equal(t, int32(0), m.Status.Msg)
	entries := logs.FilterMessage("lua update_logic error").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], `no equipment "nope"`)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "empty.lua", `local x = 1`)
	writeScript(t, dir, "syntax.lua", `function update_logic(m`)

	cases := []struct {
		script string
		want   string
	}{
		{"missing.lua", "missing.lua"},
		{"empty.lua", "does not define update_logic"},
		{"syntax.lua", "syntax.lua"},
	}
	for _, tc := range cases {
		t.Run(tc.script, func(t *testing.T) {
			e, _ := newEngine(t, dir)
			w := sim.NewWorld(zap.NewNop())
			newModule(t, w, "m1", tc.script)
			err := e.Load(w)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Zero(t, e.Attached())
		})
	}
}

func TestBrokenScriptLoggedOnceDuringUpdate(t *testing.T) {
	dir := t.TempDir()
	e, logs := newEngine(t, dir)
	w := sim.NewWorld(zap.NewNop())
	newModule(t, w, "m1", "missing.lua")

	e.Update(w)
	e.Update(w)
	assert.Equal(t, 1, logs.FilterMessage("module script unavailable").Len())
}

func TestLibHelpersAndIsolatedGlobals(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "lib/util.lua", `
function clamp(v, lo, hi)
  if v < lo then return lo elseif v > hi then return hi end
  return v
end
`)
	writeScript(t, dir, "arm.lua", `
calls = 0
function update_logic(m)
  calls = calls + 1
  local arm = m:equipment("arm")
  arm:move_to(clamp(200, 0, arm:max()))
  m.memo.calls = calls
end
`)
	e, _ := newEngine(t, dir)
	w := sim.NewWorld(zap.NewNop())
	m := newModule(t, w, "m1", "arm.lua")
	arm, err := plant.NewPicker(w, m.ID(), plant.PickerConfig{Name: "arm", Length: 75, Orientation: geom.South})
	require.NoError(t, err)

	e.Update(w)
	e.Update(w)
	assert.Equal(t, 55, arm.Target)
	memo := e.scripts[m].m.RawGetString("memo").(*lua.LTable)
	assert.Equal(t, lua.LNumber(2), memo.RawGetString("calls"))
	assert.Equal(t, lua.LNil, e.vm.GetGlobal("calls"), "script globals stay in the module environment")
}

func TestSpawnerFromScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "m1.lua", `
function update_logic(m)
  local feed = m:equipment("feed")
  m.memo.first = m.memo.first == nil and feed:spawn()
  m.msg = feed:in_flight() and 1 or 0
end
`)
	e, _ := newEngine(t, dir)
	w := sim.NewWorld(zap.NewNop())
	m := newModule(t, w, "m1", "m1.lua")
	feed, err := plant.NewSpawner(w, m.ID(), plant.SpawnerConfig{Name: "feed", Orientation: geom.East})
	require.NoError(t, err)

	e.Update(w)
	assert.True(t, feed.InFlight())
	assert.Equal(t, int32(1), m.Status.Msg)
}

func TestModuleReplacedIsReattached(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "m1.lua", `function update_logic(m) m.msg = m.msg + 1 end`)
	e, _ := newEngine(t, dir)
	w := sim.NewWorld(zap.NewNop())
	old := newModule(t, w, "m1", "m1.lua")
	e.Update(w)
	assert.Equal(t, int32(1), old.Status.Msg)

	w.Remove(old.ID())
	fresh := newModule(t, w, "m1", "m1.lua")
	e.Update(w)
	assert.Equal(t, int32(1), fresh.Status.Msg)
	assert.Equal(t, 1, e.Attached())
	_, stale := e.scripts[old]
	assert.False(t, stale)
}
