package avhwdecoder

// State is the lifecycle state of a Decoder. All state transitions happen
// under the Decoder's lock; any goroutine that waited on a condition must
// re-check the state after waking up.
type State int

const (
	// StateUninitialized: before a successful Initialize (and again after
	// teardown).
	StateUninitialized = State(iota)

	// StateIdle: initialized, no input queued.
	StateIdle

	// StateDecoding: the worker is consuming the input queue.
	StateDecoding

	// StateFlushing: draining everything already queued; new input is a
	// protocol violation.
	StateFlushing

	// StateResetting: dropping queued input and in-flight outputs; new
	// input is allowed to accumulate.
	StateResetting

	// StateDestroying: tearing down.
	StateDestroying
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateFlushing:
		return "flushing"
	case StateResetting:
		return "resetting"
	case StateDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}
