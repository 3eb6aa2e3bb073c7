package stream

import (
	"errors"
	"time"

	"github.com/rickgao/bybit-streams/internal/wire"
)

// Lifecycle errors returned to callers of synchronous stream operations.
var (
	ErrStreamCrashing    = errors.New("stream is crashing")
	ErrStreamRestarting  = errors.New("stream is restarting")
	ErrStreamStopping    = errors.New("stream is stopping")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State is the lifecycle state of a stream.
type State string

const (
	StateCreated      State = "created"
	StateConnecting   State = "connecting"
	StateRunning      State = "running"
	StateReconnecting State = "reconnecting"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateCrashed      State = "crashed"
)

var transitions = map[State][]State{
	StateCreated:      {StateConnecting, StateStopping},
	StateConnecting:   {StateRunning, StateReconnecting, StateStopping, StateCrashed},
	StateRunning:      {StateReconnecting, StateStopping, StateCrashed},
	StateReconnecting: {StateRunning, StateStopping, StateCrashed},
	StateStopping:     {StateStopped},
	StateCrashed:      {StateStopping},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Err maps a state to the lifecycle error a synchronous caller receives.
// Running streams return nil.
func (s State) Err() error {
	switch s {
	case StateRunning:
		return nil
	case StateCrashed:
		return ErrStreamCrashing
	case StateStopping, StateStopped:
		return ErrStreamStopping
	default:
		return ErrStreamRestarting
	}
}

// SignalType tags a lifecycle signal.
type SignalType string

const (
	SignalConnect            SignalType = "CONNECT"
	SignalFirstReceivedData  SignalType = "FIRST_RECEIVED_DATA"
	SignalDisconnect         SignalType = "DISCONNECT"
	SignalStreamUnrepairable SignalType = "STREAM_UNREPAIRABLE"
	SignalStop               SignalType = "STOP"
)

// IsTerminal reports whether the signal is the last one a stream emits.
func (t SignalType) IsTerminal() bool {
	return t == SignalStop || t == SignalStreamUnrepairable
}

// Signal is a lifecycle event of one stream.
type Signal struct {
	Type       SignalType
	StreamID   string
	Timestamp  time.Time
	DataRecord []byte // first record for FIRST_RECEIVED_DATA, last record for DISCONNECT
	Error      string // cause for DISCONNECT and STREAM_UNREPAIRABLE
}

// Output selects what a stream pushes into its data buffer.
type Output string

const (
	OutputRaw     Output = "raw_data"
	OutputDecoded Output = "decoded"
)

// Record is one received data frame as stored in a data buffer.
type Record struct {
	StreamID   string
	ReceivedAt time.Time
	Raw        []byte
	Frame      *wire.Frame // set for OutputDecoded streams
}

// Size is the byte size used for buffer accounting.
func (r Record) Size() int {
	return len(r.Raw)
}
