package store

import "errors"

// ErrLeaseHeld is returned by Lease.Acquire when a restore for the same
// territory and scenario is already in flight.
var ErrLeaseHeld = errors.New("restore lease already held")
