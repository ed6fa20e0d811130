package rating

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownHorse  = errors.New("unknown horse")
	ErrDuplicateRace = errors.New("duplicate race")
	ErrInvalidParams = errors.New("invalid rating parameters")
)

// InvalidInputError reports a malformed horse or race result.
type InvalidInputError struct {
	HorseID string
	Field   string
	Reason  string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for horse %q: %s %s", e.HorseID, e.Field, e.Reason)
}

// Is matches ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// UnknownHorseError is returned when a result is applied to another horse's record.
type UnknownHorseError struct {
	HorseID       string
	RecordHorseID string
}

func (e *UnknownHorseError) Error() string {
	if e.RecordHorseID == "" {
		return fmt.Sprintf("unknown horse %q", e.HorseID)
	}
	return fmt.Sprintf("unknown horse %q: record belongs to %q", e.HorseID, e.RecordHorseID)
}

// Is matches ErrUnknownHorse.
func (e *UnknownHorseError) Is(target error) bool { return target == ErrUnknownHorse }

// DuplicateRaceError is returned in strict mode when a race was already applied.
type DuplicateRaceError struct {
	HorseID string
	RaceID  string
}

func (e *DuplicateRaceError) Error() string {
	return fmt.Sprintf("race %q already applied to horse %q", e.RaceID, e.HorseID)
}

// Is matches ErrDuplicateRace.
func (e *DuplicateRaceError) Is(target error) bool { return target == ErrDuplicateRace }

func invalid(horseID, field, reason string) error {
	return &InvalidInputError{HorseID: horseID, Field: field, Reason: reason}
}
