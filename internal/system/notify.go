package system

import (
	"time"

	"github.com/twinsim/twinsim/internal/core/event"
	coresys "github.com/twinsim/twinsim/internal/core/system"
)

// NotifySystem swaps the notification bus and delivers what the previous
// tick emitted. Phase 0.
type NotifySystem struct {
	bus *event.Bus
}

func NewNotifySystem(bus *event.Bus) *NotifySystem {
	return &NotifySystem{bus: bus}
}

func (s *NotifySystem) Phase() coresys.Phase { return coresys.PhaseNotify }

func (s *NotifySystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
