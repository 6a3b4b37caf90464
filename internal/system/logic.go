package system

import (
	"time"

	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/scripting"
	"github.com/twinsim/twinsim/internal/sim"
)

// LogicSystem runs every module's Lua control logic. Phase 6.
type LogicSystem struct {
	world  *sim.World
	engine *scripting.Engine
}

func NewLogicSystem(w *sim.World, engine *scripting.Engine) *LogicSystem {
	return &LogicSystem{world: w, engine: engine}
}

func (s *LogicSystem) Phase() coresys.Phase { return coresys.PhaseLogic }

func (s *LogicSystem) Update(_ time.Duration) {
	s.engine.Update(s.world)
}
