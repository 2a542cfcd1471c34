package giveaway

// Status represents the lifecycle state of a giveaway.
type Status string

const (
	StatusCreated   Status = "created"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFinished  Status = "finished"
)

// transitions is the legal-transition table shared by every status writer.
// finished -> finished is the redraw path and only replaces winners.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusScheduled, StatusPublished},
	StatusScheduled: {StatusPublished, StatusCreated},
	StatusPublished: {StatusFinished},
	StatusFinished:  {StatusFinished},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no forward transition leaves s.
func (s Status) Terminal() bool { return s == StatusFinished }

func (s Status) String() string { return string(s) }

// CanTransition reports whether moving from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
