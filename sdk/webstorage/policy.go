package webstorage

// Op names a Storage operation.
type Op string

// Storage operations
const (
	OpKey        Op = "key"
	OpGetItem    Op = "getItem"
	OpSetItem    Op = "setItem"
	OpRemoveItem Op = "removeItem"
	OpLength     Op = "length"
	OpClear      Op = "clear"
)

// Policy decides what happens to an operation's failure.
type Policy int

const (
	// Propagate returns the failure to the caller.
	Propagate Policy = iota
	// SuppressToSentinel logs the failure and answers with the operation's
	// "no result" value instead.
	SuppressToSentinel
)

func (p Policy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case SuppressToSentinel:
		return "suppress-to-sentinel"
	default:
		return "unknown"
	}
}

// policies is the single table of failure handling: reads degrade,
// writes fail.
var policies = map[Op]Policy{
	OpKey:        SuppressToSentinel,
	OpGetItem:    SuppressToSentinel,
	OpLength:     SuppressToSentinel,
	OpSetItem:    Propagate,
	OpRemoveItem: Propagate,
	OpClear:      Propagate,
}

// PolicyFor returns the policy applied to op. Unknown operations propagate.
func PolicyFor(op Op) Policy {
	if p, ok := policies[op]; ok {
		return p
	}
	return Propagate
}
