package paranoia

// State is whether a document needs a password to be read.
type State int

const (
	// Unlocked documents open without a password.
	Unlocked State = iota
	// Locked documents are password protected.
	Locked
)

// Toggle returns the state a document ends up in after processing.
func (s State) Toggle() State {
	if s == Locked {
		return Unlocked
	}
	return Locked
}

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
