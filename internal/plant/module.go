package plant

import (
	"io"

	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/sim"
)

// DefaultModuleSize is the module's background frame.
var DefaultModuleSize = geom.V(275, 280)

// Module is a controllable unit of the plant. Its equipment are its
// children, addressed by name from the module's control logic; its
// handshake status is shown on a transient status panel.
type Module struct {
	Base
	Endpoint string
	Script   string
	Size     geom.Vector

	Vars   *handshake.Variables
	Status *handshake.Status

	// Channel is closed when the module is removed. Set by whoever opens
	// the module's exchange endpoint.
	Channel io.Closer

	panel *ModuleStatus
}

// ModuleStatus draws the start, ack, busy and ready lamps of a module and
// the operator's ready switch.
type ModuleStatus struct {
	Base
	module *Module

	start, ack, busy, ready *sim.RenderHandle
}

type ModuleConfig struct {
	Name     string
	Pos      geom.Vector
	Endpoint string
	Script   string
	Ready    bool
	Size     geom.Vector
}

func NewModule(w *sim.World, parent sim.EntityID, c ModuleConfig) (*Module, error) {
	size := c.Size
	if size.IsZero() {
		size = DefaultModuleSize
	}
	m := &Module{
		Base:     Base{Name: c.Name},
		Endpoint: c.Endpoint,
		Script:   c.Script,
		Size:     size,
		Vars:     &handshake.Variables{},
		Status:   &handshake.Status{},
	}
	m.Status.SetReady(c.Ready)
	e, err := create(w, parent, sim.Spec{
		Kind:     sim.KindModule,
		Pos:      c.Pos,
		NoLayer:  true,
		Behavior: m,
	}, &m.Base)
	if err != nil {
		return nil, err
	}
	w.Draw(e, sim.Shape{Type: sim.ShapeRect, Size: size})
	w.LowerToBottom(e)

	m.panel = &ModuleStatus{module: m}
	pe := w.MustCreate(e.ID, sim.Spec{
		Kind:      sim.KindModuleStatus,
		Pos:       geom.V(5, 5),
		NoLayer:   true,
		Transient: true,
		Behavior:  m.panel,
	})
	m.panel.id = pe.ID
	m.panel.draw(w, pe)
	w.MarkDirty(e.ID)
	return m, nil
}

// Equipment returns the named piece of equipment below the module.
func (m *Module) Equipment(w *sim.World, name string) *sim.Entity {
	return Find(w, m.id, name)
}

// Panel returns the status panel.
func (m *Module) Panel() *ModuleStatus { return m.panel }

// Refresh redraws the status lamps on the next update.
func (m *Module) Refresh(w *sim.World) {
	if m.panel != nil {
		w.MarkDirty(m.panel.id)
	}
}

func (m *Module) OnRemove(w *sim.World, _ *sim.Entity) {
	if m.Channel == nil {
		return
	}
	if err := m.Channel.Close(); err != nil {
		w.Log().Warn("close module channel", zap.String("module", m.Name), zap.Error(err))
	}
	m.Channel = nil
}

func (p *ModuleStatus) draw(w *sim.World, e *sim.Entity) {
	lamp := func(y float64, label string) *sim.RenderHandle {
		w.Draw(e, sim.Shape{Type: sim.ShapeText, Pos: geom.V(25, y+5), Text: label, Anchor: "w"})
		return w.Draw(e, sim.Shape{Type: sim.ShapeOval, Pos: geom.V(0, y), Size: geom.V(20, 20), Fill: ColorIdle})
	}
	p.start = lamp(0, "Start "+p.module.Name)
	p.ack = lamp(25, "Ack")
	p.busy = lamp(50, "Busy")
	p.ready = lamp(75, "Ready")
	w.Draw(e, sim.Shape{Type: sim.ShapeWidget, Pos: geom.V(0, 100), Widget: "ready:" + p.module.Name})
}

func (p *ModuleStatus) OnUpdate(w *sim.World, _ *sim.Entity) {
	st := p.module.Status
	p.start.SetColor(w, pick(st.Start, ColorActive, ColorIdle))
	p.ack.SetColor(w, pick(st.Ack, ColorActive, ColorIdle))
	p.busy.SetColor(w, pick(st.Busy, ColorAlarm, ColorIdle))
	p.ready.SetColor(w, pick(st.Ready(), ColorActive, ColorAlarm))
}

func pick(b bool, on, off string) string {
	if b {
		return on
	}
	return off
}

// Modules returns the top-level modules in creation order.
func Modules(w *sim.World) []*Module {
	var out []*Module
	for _, id := range w.Children(w.Root()) {
		if m, ok := As[Module](w.Get(id)); ok {
			out = append(out, m)
		}
	}
	return out
}

// ModuleByName returns the top-level module called name.
func ModuleByName(w *sim.World, name string) (*Module, bool) {
	for _, m := range Modules(w) {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}
