package jobs

import (
	"encoding/json"
	goerrors "errors"
	"fmt"

	"github.com/pkg/errors"

	"github.com/urbanlab/popforecast/internal/client"
	"github.com/urbanlab/popforecast/internal/store"
)

// FailureKind is the stable classification of a job failure. It is the
// only part of an exception that survives the worker process boundary
// in a machine-readable form; the status endpoint reconstructs the
// original semantic category from it.
type FailureKind string

const (
	FailureObjectNotFound    FailureKind = "object_not_found"
	FailureAPIConnection     FailureKind = "api_connection"
	FailureAPITimeout        FailureKind = "api_timeout"
	FailureInvalidStatusCode FailureKind = "invalid_status_code"
	FailureRestoreInProgress FailureKind = "restore_in_progress"
	FailureInternal          FailureKind = "internal"
)

// Failure is the serialized diagnostic recorded on a failed job row.
// The live error value cannot be re-raised in the API process, so kind,
// message and stack trace are captured as plain data at the point of
// failure inside the worker.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Trace   string      `json:"trace,omitempty"`
}

// Classify maps an error onto its failure kind.
func Classify(err error) FailureKind {
	var notFound *client.ObjectNotFoundError
	var connection *client.APIConnectionError
	var timeout *client.APITimeoutError
	var status *client.InvalidStatusCodeError

	switch {
	case goerrors.As(err, &notFound):
		return FailureObjectNotFound
	case goerrors.As(err, &connection):
		return FailureAPIConnection
	case goerrors.As(err, &timeout):
		return FailureAPITimeout
	case goerrors.As(err, &status):
		return FailureInvalidStatusCode
	case goerrors.Is(err, store.ErrLeaseHeld):
		return FailureRestoreInProgress
	default:
		return FailureInternal
	}
}

// CaptureFailure turns err into the error a worker returns to the
// queue: its message is the JSON-encoded Failure, so the diagnostics
// land on the job row verbatim.
func CaptureFailure(err error) error {
	failure := Failure{
		Kind:    Classify(err),
		Message: err.Error(),
		Trace:   fmt.Sprintf("%+v", errors.WithStack(err)),
	}
	buf, marshalErr := json.Marshal(failure)
	if marshalErr != nil {
		return err
	}
	return goerrors.New(string(buf))
}

// DecodeFailure parses a recorded job error back into a Failure. Errors
// recorded outside CaptureFailure (panics, queue-level timeouts) come
// through as FailureInternal with the raw message.
func DecodeFailure(recorded string) Failure {
	var failure Failure
	if err := json.Unmarshal([]byte(recorded), &failure); err != nil || failure.Kind == "" {
		return Failure{Kind: FailureInternal, Message: recorded}
	}
	return failure
}
