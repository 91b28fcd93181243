package raop

// State is a RAOP session's position in the ANNOUNCE/SETUP/RECORD
// lifecycle (spec.md §4.6).
type State int

const (
	StateNew State = iota
	StateAnnounced
	StateSetup
	StateRecording
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAnnounced:
		return "announced"
	case StateSetup:
		return "setup"
	case StateRecording:
		return "recording"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
