package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/sim"
)

// logicFunc is the global every module script defines.
const logicFunc = "update_logic"

// Engine wraps a single gopher-lua VM running the control logic of every
// module. Each module script is loaded into its own environment, so two
// scripts may both define update_logic. Single-goroutine access only
// (tick loop).
type Engine struct {
	vm      *lua.LState
	dir     string
	scripts map[*plant.Module]*moduleScript
	world   *sim.World // set while update_logic runs
	log     *zap.Logger
}

type moduleScript struct {
	module  *plant.Module
	path    string
	fn      lua.LValue // nil when the script failed to load
	m       *lua.LTable
	equip   map[string]equipRef
	lastErr string
}

// NewEngine creates a Lua engine. Shared helpers in <dir>/lib are loaded
// into the global environment; module scripts are resolved against dir.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:      vm,
		dir:     dir,
		scripts: make(map[*plant.Module]*moduleScript),
		log:     log,
	}
	if err := e.loadDir(filepath.Join(dir, "lib")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load lib scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory into the globals.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Load attaches the script of every module in w. It fails on the first
// script that cannot be loaded or does not define update_logic.
func (e *Engine) Load(w *sim.World) error {
	for _, m := range plant.Modules(w) {
		if m.Script == "" {
			continue
		}
		if _, err := e.attach(m); err != nil {
			return err
		}
	}
	return nil
}

// Update runs update_logic once for every module with a script. Modules
// added since the last call are attached on the fly; a script that fails
// to load is logged once and skipped from then on. A Lua error skips that
// module's logic for this tick: nothing the script wrote to m is applied.
func (e *Engine) Update(w *sim.World) {
	seen := make(map[*plant.Module]bool, len(e.scripts))
	for _, m := range plant.Modules(w) {
		if m.Script == "" {
			continue
		}
		seen[m] = true
		ms, ok := e.scripts[m]
		if !ok {
			var err error
			if ms, err = e.attach(m); err != nil {
				e.log.Error("module script unavailable", zap.String("module", m.Name), zap.Error(err))
			}
		}
		if ms.fn != nil {
			e.run(w, ms)
		}
	}
	for m := range e.scripts {
		if !seen[m] {
			delete(e.scripts, m)
		}
	}
}

// Attached returns the number of modules with a loaded script.
func (e *Engine) Attached() int {
	n := 0
	for _, ms := range e.scripts {
		if ms.fn != nil {
			n++
		}
	}
	return n
}

func (e *Engine) attach(m *plant.Module) (*moduleScript, error) {
	path := m.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}
	ms := &moduleScript{module: m, path: path, equip: make(map[string]equipRef)}
	e.scripts[m] = ms

	chunk, err := e.vm.LoadFile(path)
	if err != nil {
		return ms, fmt.Errorf("module %s: load %s: %w", m.Name, path, err)
	}
	env := e.vm.NewTable()
	meta := e.vm.NewTable()
	meta.RawSetString("__index", e.vm.G.Global)
	e.vm.SetMetatable(env, meta)
	chunk.Env = env
	if err := e.vm.CallByParam(lua.P{Fn: chunk, NRet: 0, Protect: true}); err != nil {
		return ms, fmt.Errorf("module %s: run %s: %w", m.Name, path, err)
	}
	fn, ok := env.RawGetString(logicFunc).(*lua.LFunction)
	if !ok {
		return ms, fmt.Errorf("module %s: %s does not define %s", m.Name, path, logicFunc)
	}
	ms.fn = fn
	ms.m = e.moduleTable(ms)
	e.log.Debug("attached module script", zap.String("module", m.Name), zap.String("file", path))
	return ms, nil
}

// run calls update_logic(m) with the module's handshake status and copies
// busy and msg back on success.
func (e *Engine) run(w *sim.World, ms *moduleScript) {
	st := ms.module.Status
	t := ms.m
	t.RawSetString("start", lua.LBool(st.Start))
	t.RawSetString("ack", lua.LBool(st.Ack))
	t.RawSetString("busy", lua.LBool(st.Busy))
	t.RawSetString("ready", lua.LBool(st.Ready()))
	t.RawSetString("order", lua.LNumber(st.Order))
	t.RawSetString("msg", lua.LNumber(st.Msg))
	t.RawSetString("tick", lua.LNumber(w.Ticks()))

	e.world = w
	defer func() { e.world = nil }()
	if err := e.vm.CallByParam(lua.P{
		Fn:      ms.fn,
		NRet:    0,
		Protect: true,
	}, t); err != nil {
		msg := err.Error()
		if msg != ms.lastErr {
			e.log.Error("lua update_logic error", zap.String("module", ms.module.Name), zap.Error(err))
		} else {
			e.log.Debug("lua update_logic error", zap.String("module", ms.module.Name), zap.Error(err))
		}
		ms.lastErr = msg
		return
	}
	ms.lastErr = ""

	busy := lua.LVAsBool(t.RawGetString("busy"))
	msg := int32(lInt(t, "msg"))
	if busy != st.Busy || msg != st.Msg {
		st.Busy = busy
		st.Msg = msg
		ms.module.Refresh(w)
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}
