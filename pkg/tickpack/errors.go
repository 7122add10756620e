package tickpack

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingWorld is returned when no snapshot in the demo carried world
	// bounds.
	ErrMissingWorld = errors.New("no world defined in demo")
	// ErrIndexOutOfRange is returned by accessors given a slot, tick or kill
	// index outside the encoded state.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrTickOutOfRange is wrapped in a SourceDecodeError when a snapshot
	// tick lies too far past the end of the demo.
	ErrTickOutOfRange = errors.New("snapshot tick out of range")
)

const (
	// tickOverrun is how far past the header tick count snapshots may go.
	tickOverrun = 66 * 60
	// maxTicks bounds header and snapshot ticks, about 70 hours at 66
	// ticks per second.
	maxTicks = 1 << 24
)

// tickLimit returns the largest snapshot tick accepted for a header tick
// count of at most maxTicks.
func tickLimit(headerTicks uint32) uint32 {
	if headerTicks == 0 {
		return maxTicks
	}
	return min(headerTicks+tickOverrun, maxTicks)
}

// SourceDecodeError is a failure of the tick source. Tick is the last demo
// tick that was processed before the failure.
type SourceDecodeError struct {
	Tick uint32
	Err  error
}

func (e *SourceDecodeError) Error() string {
	return fmt.Sprintf("decode tick stream after tick %d: %v", e.Tick, e.Err)
}

func (e *SourceDecodeError) Unwrap() error {
	return e.Err
}

func outOfRange(what string, index, length int) error {
	return fmt.Errorf("%w: %s %d (have %d)", ErrIndexOutOfRange, what, index, length)
}
