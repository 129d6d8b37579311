package session

// State is the controller's run state. The only transitions are
// Stopped -> Listening and Listening -> Stopped.
type State int32

const (
	Stopped State = iota
	Listening
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Listening:
		return "Listening"
	default:
		return "Unknown"
	}
}
