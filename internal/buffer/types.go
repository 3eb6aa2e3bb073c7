package buffer

import "errors"

// Errors
var (
	ErrClosed = errors.New("buffer closed")
)

// Policy selects the default serving and eviction end of a StreamBuffer.
type Policy int

const (
	FIFO Policy = iota
	LIFO
)

func (p Policy) String() string {
	if p == LIFO {
		return "LIFO"
	}
	return "FIFO"
}

// ParsePolicy maps "FIFO"/"LIFO" (case-sensitive, empty = FIFO) to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "FIFO", "fifo":
		return FIFO, true
	case "LIFO", "lifo":
		return LIFO, true
	}
	return FIFO, false
}

// End names one side of a StreamBuffer.
type End int

const (
	EndDefault End = iota // resolved from the Policy
	EndOldest
	EndNewest
)

// Options configures a StreamBuffer.
type Options[T any] struct {
	Policy Policy
	MaxLen int // 0 = unbounded

	// PopEnd and EvictEnd override the Policy's defaults.
	// FIFO: pop oldest, evict oldest. LIFO: pop newest, evict newest.
	PopEnd   End
	EvictEnd End

	// SizeOf reports the byte size of an item for size accounting.
	SizeOf func(T) int

	InitialCapacity int
}

// Stats contains buffer statistics.
type Stats struct {
	Count        int
	Capacity     int
	MaxLen       int
	ByteSize     int64
	TotalPushed  int64
	TotalPopped  int64
	TotalEvicted int64
	ResizeCount  int
}
