package auth

// State of the session lifecycle as seen by UI collaborators
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	RefreshingSilently
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "Anonymous"
	case Authenticating:
		return "Authenticating"
	case Authenticated:
		return "Authenticated"
	case RefreshingSilently:
		return "RefreshingSilently"
	case LoggingOut:
		return "LoggingOut"
	}
	return "Unknown"
}
