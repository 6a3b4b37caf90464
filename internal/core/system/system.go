package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseNotify    Phase = iota // 0: deliver last tick's notifications
	PhaseTrigger                // 1: evaluate triggers, queue events
	PhaseDispatch               // 2: run queued trigger events
	PhaseUpdate                 // 3: propagate dirty entities
	PhaseAnimate                // 4: step animations
	PhaseRender                 // 5: flush render handles
	PhaseLogic                  // 6: module control logic
	PhaseHandshake              // 7: sync handshake channels
	PhasePersist                // 8: journal flush + autosave
)

func (p Phase) String() string {
	switch p {
	case PhaseNotify:
		return "notify"
	case PhaseTrigger:
		return "trigger"
	case PhaseDispatch:
		return "dispatch"
	case PhaseUpdate:
		return "update"
	case PhaseAnimate:
		return "animate"
	case PhaseRender:
		return "render"
	case PhaseLogic:
		return "logic"
	case PhaseHandshake:
		return "handshake"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
