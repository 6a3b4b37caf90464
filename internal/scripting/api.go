package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/sim"
)

// moduleTable builds the m argument of update_logic. The handshake fields
// are refreshed before every call; memo survives between ticks.
func (e *Engine) moduleTable(ms *moduleScript) *lua.LTable {
	L := e.vm
	t := L.NewTable()
	t.RawSetString("name", lua.LString(ms.module.Name))
	t.RawSetString("memo", L.NewTable())
	L.SetFuncs(t, map[string]lua.LGFunction{
		"equipment": func(L *lua.LState) int {
			name := L.CheckString(2)
			L.Push(e.equipment(L, ms, name))
			return 1
		},
		"log": func(L *lua.LState) int {
			e.log.Info(L.CheckString(2),
				zap.String("module", ms.module.Name),
				zap.Uint64("tick", e.world.Ticks()))
			return 0
		},
	})
	return t
}

// equipment returns the method table for the named child of the module,
// raising a Lua error when there is none.
func (e *Engine) equipment(L *lua.LState, ms *moduleScript, name string) *lua.LTable {
	w := e.world
	ent := ms.module.Equipment(w, name)
	if ent == nil {
		L.RaiseError("module %s has no equipment %q", ms.module.Name, name)
		return nil
	}
	if ref, ok := ms.equip[name]; ok && ref.id == ent.ID {
		return ref.table
	}

	var t *lua.LTable
	switch b := ent.Behavior.(type) {
	case *plant.Conveyor:
		t = e.conveyorTable(b)
	case *plant.Stopper:
		t = e.stopperTable(b)
	case *plant.Picker:
		t = e.pickerTable(b)
	case *plant.Spawner:
		t = e.spawnerTable(b)
	case *plant.Sensor:
		t = e.sensorTable(b)
	case *plant.Zone:
		t = e.zoneTable(b)
	default:
		L.RaiseError("equipment %q (%s) is not scriptable", name, ent.Kind)
		return nil
	}
	t.RawSetString("name", lua.LString(name))
	t.RawSetString("kind", lua.LString(ent.Kind.String()))
	ms.equip[name] = equipRef{id: ent.ID, table: t}
	return t
}

func (e *Engine) conveyorTable(c *plant.Conveyor) *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"speed": func(L *lua.LState) int {
			L.Push(lua.LNumber(c.Speed))
			return 1
		},
		"set_speed": func(L *lua.LState) int {
			c.SetSpeed(float64(L.CheckNumber(2)))
			return 0
		},
		"occupied": func(L *lua.LState) int {
			L.Push(lua.LBool(c.Occupied()))
			return 1
		},
	})
}

func (e *Engine) stopperTable(s *plant.Stopper) *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"open": func(L *lua.LState) int {
			s.Open()
			return 0
		},
		"close": func(L *lua.LState) int {
			s.Close(e.world)
			return 0
		},
		"request_close": func(L *lua.LState) int {
			s.RequestClose()
			return 0
		},
		"toggle": func(L *lua.LState) int {
			s.Toggle()
			return 0
		},
		"closing": func(L *lua.LState) int {
			L.Push(lua.LBool(s.Closing()))
			return 1
		},
		"set_auto_close": func(L *lua.LState) int {
			s.AutoClose = L.CheckBool(2)
			return 0
		},
	})
}

func (e *Engine) pickerTable(p *plant.Picker) *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"move_to": func(L *lua.LState) int {
			p.MoveTo(L.CheckInt(2))
			return 0
		},
		"pick_up": func(L *lua.LState) int {
			p.PickUp(e.world)
			return 0
		},
		"put_down": func(L *lua.LState) int {
			p.PutDown(e.world)
			return 0
		},
		"in_pos": func(L *lua.LState) int {
			L.Push(lua.LBool(p.InPos))
			return 1
		},
		"occupied": func(L *lua.LState) int {
			L.Push(lua.LBool(p.Occupied(e.world)))
			return 1
		},
		"position": func(L *lua.LState) int {
			L.Push(lua.LNumber(p.Actual))
			return 1
		},
		"target": func(L *lua.LState) int {
			L.Push(lua.LNumber(p.Target))
			return 1
		},
		"max": func(L *lua.LState) int {
			L.Push(lua.LNumber(p.MaxTarget()))
			return 1
		},
	})
}

func (e *Engine) spawnerTable(s *plant.Spawner) *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"spawn": func(L *lua.LState) int {
			L.Push(lua.LBool(s.Spawn(e.world)))
			return 1
		},
		"in_flight": func(L *lua.LState) int {
			L.Push(lua.LBool(s.InFlight()))
			return 1
		},
	})
}

func (e *Engine) sensorTable(s *plant.Sensor) *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"activated": func(L *lua.LState) int {
			L.Push(lua.LBool(s.Activated))
			return 1
		},
	})
}

func (e *Engine) zoneTable(z *plant.Zone) *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"occupied": func(L *lua.LState) int {
			L.Push(lua.LBool(z.Occupied()))
			return 1
		},
	})
}

// equipRef caches an equipment table for as long as the named entity lives.
type equipRef struct {
	id    sim.EntityID
	table *lua.LTable
}
