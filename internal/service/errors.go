package service

import "fmt"

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(jobID string) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", jobID)}
}

// ErrPreviousJobInvalid marks a chaining request whose referenced job is
// not a balance job for the requested territory.
type ErrPreviousJobInvalid struct {
	error
}

func NewErrPreviousJobInvalid(jobID string, reason string) *ErrPreviousJobInvalid {
	return &ErrPreviousJobInvalid{fmt.Errorf("job %s cannot be reused: %s", jobID, reason)}
}

// ErrPreviousJobNotFinished marks a chaining request whose referenced
// job exists but has not completed yet, so its output is unavailable.
type ErrPreviousJobNotFinished struct {
	error
}

func NewErrPreviousJobNotFinished(jobID string) *ErrPreviousJobNotFinished {
	return &ErrPreviousJobNotFinished{fmt.Errorf("job %s has not finished yet", jobID)}
}
