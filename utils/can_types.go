package utils

import "sort"

// Frame directions as they appear in the map's direction column, seen from
// the bridge.
const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the named signal of the frame.
func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RequireSignals checks that frame carries every listed signal. Used at
// startup so a stale map fails before the loop starts.
func (m *CANMap) RequireSignals(frame string, signals ...string) error {
	fd, err := m.FrameByName(frame)
	if err != nil {
		return err
	}
	for _, name := range signals {
		if _, ok := fd.Signal(name); !ok {
			return &MissingSignalError{Frame: frame, Signal: name}
		}
	}
	return nil
}

type MissingSignalError struct {
	Frame  string
	Signal string
}

func (e *MissingSignalError) Error() string {
	return "frame " + e.Frame + " has no signal " + e.Signal
}
