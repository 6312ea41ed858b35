package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyWindow is returned when a window selects no time steps.
	ErrEmptyWindow = errors.New("grid: empty time window")
	// ErrWindowRange is returned when a window reaches outside its series.
	ErrWindowRange = errors.New("grid: time window out of range")
	// ErrShapeMismatch is returned when two grids that must align do not.
	ErrShapeMismatch = errors.New("grid: shape mismatch")
)

// Window selects time steps [Start, End) of a series.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len is the number of time steps selected.
func (w Window) Len() int {
	return w.End - w.Start
}

// Check validates 0 <= Start < End <= length.
func (w Window) Check(length int) error {
	if w.End <= w.Start {
		return fmt.Errorf("%w: [%d, %d)", ErrEmptyWindow, w.Start, w.End)
	}
	if w.Start < 0 || w.End > length {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrWindowRange, w.Start, w.End, length)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d)", w.Start, w.End)
}
