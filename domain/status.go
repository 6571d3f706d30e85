package domain

import (
	"fmt"
	"strings"
)

// Status is the progress state of a task. Any status may follow any other.
type Status int

const (
	StatusTodo Status = iota + 1
	StatusDoing
	StatusDone
)

func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TODO":
		return StatusTodo, nil
	case "DOING":
		return StatusDoing, nil
	case "DONE":
		return StatusDone, nil
	default:
		return 0, fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

func (s Status) String() string {
	switch s {
	case StatusTodo:
		return "TODO"
	case StatusDoing:
		return "DOING"
	case StatusDone:
		return "DONE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) Valid() bool {
	return s >= StatusTodo && s <= StatusDone
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: invalid status %d", ErrValidation, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
