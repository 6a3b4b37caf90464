package plant

import (
	"errors"
	"fmt"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/persist"
	"github.com/twinsim/twinsim/internal/sim"
)

// Codecs is the layout codec table for every persisted equipment kind.
// World, Entity, PickerHead and ModuleStatus are never saved.
var Codecs = persist.Table{
	sim.KindWall:     {Params: wallParams, Build: buildWall},
	sim.KindSensor:   {Params: sensorParams, Build: buildSensor},
	sim.KindStack:    {Params: stackParams, Build: buildStack},
	sim.KindConveyor: {Params: conveyorParams, Build: buildConveyor},
	sim.KindStopper:  {Params: stopperParams, Build: buildStopper},
	sim.KindSpawner:  {Params: spawnerParams, Build: buildSpawner},
	sim.KindPicker:   {Params: pickerParams, Build: buildPicker},
	sim.KindRemover:  {Params: removerParams, Build: buildRemover},
	sim.KindZone:     {Params: zoneParams, Build: buildZone},
	sim.KindModule:   {Params: moduleParams, Build: buildModule},
}

// kwargReader collects the first decoding error so that builders can read
// all parameters before checking once.
type kwargReader struct {
	kw  persist.Kwargs
	err error
}

func (r *kwargReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *kwargReader) vector(name string) geom.Vector {
	v, err := r.kw.Vector(name)
	r.keep(err)
	return v
}

func (r *kwargReader) vectorOr(name string, def geom.Vector) geom.Vector {
	v, err := r.kw.VectorOr(name, def)
	r.keep(err)
	return v
}

func (r *kwargReader) float(name string, def float64) float64 {
	v, err := r.kw.Float(name, def)
	r.keep(err)
	return v
}

func (r *kwargReader) int(name string, def int) int {
	v, err := r.kw.Int(name, def)
	r.keep(err)
	return v
}

func (r *kwargReader) bool(name string, def bool) bool {
	v, err := r.kw.Bool(name, def)
	r.keep(err)
	return v
}

func (r *kwargReader) string(name, def string) string {
	v, err := r.kw.String(name, def)
	r.keep(err)
	return v
}

func (r *kwargReader) orientation(name string) geom.Orientation {
	v, err := r.kw.Orientation(name, geom.East)
	r.keep(err)
	return v
}

func (r *kwargReader) items(name string) []Item {
	maps, ok, err := r.kw.Maps(name)
	r.keep(err)
	if !ok || err != nil {
		return DefaultItems()
	}
	items := make([]Item, 0, len(maps))
	for _, m := range maps {
		color, _ := m["color"].(string)
		items = append(items, Item{Color: color})
	}
	if len(items) == 0 {
		r.keep(fmt.Errorf("%q: empty stack", name))
	}
	return items
}

func itemsParam(items []Item) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{"color": it.Color}
	}
	return out
}

func withName(kw persist.Kwargs, e *sim.Entity) persist.Kwargs {
	if n := NameOf(e); n != "" {
		kw["name"] = n
	}
	return kw
}

func wallParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Wall](e)
	return withName(persist.Kwargs{
		"pos":    e.Pos().Pair(),
		"size":   b.Size.Pair(),
		"layer":  e.Layer,
		"render": b.Render,
	}, e)
}

func buildWall(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := WallConfig{
		Name:   r.string("name", ""),
		Pos:    r.vector("pos"),
		Size:   r.vector("size"),
		Layer:  r.int("layer", 0),
		Render: r.bool("render", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewWall(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func sensorParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Sensor](e)
	return withName(persist.Kwargs{
		"pos":         e.Pos().Pair(),
		"orientation": string(b.Orientation),
		"layer":       b.Layer,
	}, e)
}

func buildSensor(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := SensorConfig{
		Name:        r.string("name", ""),
		Pos:         r.vector("pos"),
		Orientation: r.orientation("orientation"),
		Layer:       r.int("layer", 0),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewSensor(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func stackParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Stack](e)
	kw := persist.Kwargs{
		"pos":            e.Pos().Pair(),
		"stack":          itemsParam(b.Items),
		"layer":          e.Layer,
		"infinite_stack": b.Infinite,
	}
	if b.Save {
		kw["save"] = true
	}
	return withName(kw, e)
}

func buildStack(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := StackConfig{
		Name:     r.string("name", ""),
		Pos:      r.vector("pos"),
		Items:    r.items("stack"),
		Layer:    r.int("layer", 0),
		Infinite: r.bool("infinite_stack", false),
		// a stack found in a layout file was saved on purpose
		Save: r.bool("save", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewStack(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func conveyorParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Conveyor](e)
	return withName(persist.Kwargs{
		"pos":         e.Pos().Pair(),
		"length":      b.Length,
		"speed":       b.Speed,
		"orientation": string(b.Orientation),
		"animated":    b.Animated,
	}, e)
}

func buildConveyor(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := ConveyorConfig{
		Name:        r.string("name", ""),
		Pos:         r.vector("pos"),
		Length:      r.float("length", 60),
		Speed:       r.float("speed", 1),
		Orientation: r.orientation("orientation"),
		Animated:    r.bool("animated", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewConveyor(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func stopperParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Stopper](e)
	return withName(persist.Kwargs{
		"pos":         e.Pos().Pair(),
		"orientation": string(b.Orientation),
		"auto_close":  b.AutoClose,
	}, e)
}

func buildStopper(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := StopperConfig{
		Name:        r.string("name", ""),
		Pos:         r.vector("pos"),
		Orientation: r.orientation("orientation"),
		AutoClose:   r.bool("auto_close", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewStopper(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func spawnerParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Spawner](e)
	return withName(persist.Kwargs{
		"pos":         e.Pos().Pair(),
		"orientation": string(b.Orientation),
		"stack":       itemsParam(b.Items),
	}, e)
}

func buildSpawner(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := SpawnerConfig{
		Name:        r.string("name", ""),
		Pos:         r.vector("pos"),
		Orientation: r.orientation("orientation"),
		Items:       r.items("stack"),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewSpawner(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func pickerParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Picker](e)
	return withName(persist.Kwargs{
		"pos":                     e.Pos().Pair(),
		"length":                  b.Length,
		"orientation":             string(b.Orientation),
		"render":                  b.Render,
		"render_head":             b.RenderHead,
		"confine_sled_target_pos": b.Confine,
	}, e)
}

func buildPicker(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := PickerConfig{
		Name:        r.string("name", ""),
		Pos:         r.vector("pos"),
		Orientation: r.orientation("orientation"),
		Render:      r.bool("render", true),
		RenderHead:  r.bool("render_head", true),
		Confine:     r.bool("confine_sled_target_pos", true),
	}
	c.Length = r.float("length", 0)
	if r.err == nil && !kw.Has("length") {
		r.keep(errors.New(`missing "length"`))
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewPicker(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func removerParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Remover](e)
	return withName(persist.Kwargs{
		"pos":  e.Pos().Pair(),
		"size": b.Size.Pair(),
	}, e)
}

func buildRemover(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := RemoverConfig{
		Name: r.string("name", ""),
		Pos:  r.vector("pos"),
		Size: r.vector("size"),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewRemover(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func zoneParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Zone](e)
	return withName(persist.Kwargs{
		"pos":  e.Pos().Pair(),
		"size": b.Size.Pair(),
	}, e)
}

func buildZone(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := ZoneConfig{
		Name: r.string("name", ""),
		Pos:  r.vector("pos"),
		Size: r.vector("size"),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewZone(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}

func moduleParams(e *sim.Entity) persist.Kwargs {
	b, _ := As[Module](e)
	kw := persist.Kwargs{
		"pos":      e.Pos().Pair(),
		"name":     b.Name,
		"endpoint": b.Endpoint,
		"ready":    b.Status.Ready(),
		"size":     b.Size.Pair(),
	}
	if b.Script != "" {
		kw["script"] = b.Script
	}
	return kw
}

func buildModule(w *sim.World, parent sim.EntityID, kw persist.Kwargs) (*sim.Entity, error) {
	r := kwargReader{kw: kw}
	c := ModuleConfig{
		Name:     r.string("name", ""),
		Pos:      r.vector("pos"),
		Endpoint: r.string("endpoint", ""),
		Script:   r.string("script", ""),
		Ready:    r.bool("ready", false),
		Size:     r.vectorOr("size", DefaultModuleSize),
	}
	if r.err == nil && c.Name == "" {
		r.keep(errors.New(`missing "name"`))
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := NewModule(w, parent, c)
	if err != nil {
		return nil, err
	}
	return b.Entity(w), nil
}
