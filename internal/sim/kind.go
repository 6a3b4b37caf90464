package sim

import "fmt"

// Kind is the closed set of entity kinds known to the engine. The value
// doubles as the persisted type tag (see String / ParseKind).
type Kind uint8

const (
	KindWorld Kind = iota
	KindEntity
	KindWall
	KindSensor
	KindStack
	KindConveyor
	KindStopper
	KindSpawner
	KindPicker
	KindPickerHead
	KindRemover
	KindZone
	KindModule
	KindModuleStatus

	kindCount
)

// KindCount is the number of defined kinds, for tables indexed by Kind.
const KindCount = int(kindCount)

var kindNames = [kindCount]string{
	KindWorld:        "World",
	KindEntity:       "Entity",
	KindWall:         "Wall",
	KindSensor:       "Sensor",
	KindStack:        "Stack",
	KindConveyor:     "Conveyor",
	KindStopper:      "Stopper",
	KindSpawner:      "Spawner",
	KindPicker:       "Picker",
	KindPickerHead:   "PickerHead",
	KindRemover:      "Remover",
	KindZone:         "Zone",
	KindModule:       "Module",
	KindModuleStatus: "ModuleStatus",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves a type tag.
func ParseKind(tag string) (Kind, bool) {
	for k, name := range kindNames {
		if name == tag {
			return Kind(k), true
		}
	}
	return 0, false
}
