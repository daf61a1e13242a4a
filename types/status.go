package types

// BoardStatus is the lifecycle state of a board.
type BoardStatus uint8

const (
	StatusUnconfigured BoardStatus = iota
	StatusConfigured
	StatusReady
	StatusRunning
	StatusSuspended
	StatusExited
)

func (s BoardStatus) String() string {
	switch s {
	case StatusConfigured:
		return "configured"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusExited:
		return "exited"
	default:
		return "unconfigured"
	}
}

func (s BoardStatus) MarshalJSON() ([]byte, error) { return []byte(`"` + s.String() + `"`), nil }

// Active reports whether a program is attached to a live run.
func (s BoardStatus) Active() bool { return s == StatusRunning || s == StatusSuspended }

// BoardState is published (retained) whenever a board changes status.
type BoardState struct {
	Board  string      `json:"board"`
	Status BoardStatus `json:"status"`
	TS     int64       `json:"ts_ms"`
}

// BoardExit is published once when a run ends.
type BoardExit struct {
	Board string `json:"board"`
	Code  int    `json:"code"`
	TS    int64  `json:"ts_ms"`
}

// BuildReport is published when a compile finishes.
type BuildReport struct {
	Sketch string `json:"sketch"`
	Result string `json:"result"`
	OK     bool   `json:"ok"`
	TS     int64  `json:"ts_ms"`
}
