package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urbanlab/popforecast/internal/client"
	"github.com/urbanlab/popforecast/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		kind FailureKind
	}{
		{client.NewObjectNotFoundError("territory 5 not found"), FailureObjectNotFound},
		{client.NewAPIConnectionError("http://api", errors.New("refused")), FailureAPIConnection},
		{client.NewAPITimeoutError("http://api", errors.New("deadline")), FailureAPITimeout},
		{client.NewInvalidStatusCodeError("http://api", 500), FailureInvalidStatusCode},
		{store.ErrLeaseHeld, FailureRestoreInProgress},
		{errors.New("anything else"), FailureInternal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.kind, Classify(tc.err), "%v", tc.err)
	}
}

func TestCaptureFailureRoundtrip(t *testing.T) {
	captured := CaptureFailure(client.NewObjectNotFoundError("territory 5 not found"))

	failure := DecodeFailure(captured.Error())
	require.Equal(t, FailureObjectNotFound, failure.Kind)
	require.Equal(t, "territory 5 not found", failure.Message)
	require.NotEmpty(t, failure.Trace)
}

func TestCaptureFailureWrapsCause(t *testing.T) {
	cause := client.NewAPITimeoutError("http://api", errors.New("deadline"))
	captured := CaptureFailure(cause)

	failure := DecodeFailure(captured.Error())
	require.Equal(t, FailureAPITimeout, failure.Kind)
	require.Contains(t, failure.Message, "http://api")
}

func TestDecodeFailureRawMessage(t *testing.T) {
	failure := DecodeFailure("worker killed")
	require.Equal(t, FailureInternal, failure.Kind)
	require.Equal(t, "worker killed", failure.Message)
	require.Empty(t, failure.Trace)
}

func TestDecodeFailureEmptyKind(t *testing.T) {
	failure := DecodeFailure(`{"message":"x"}`)
	require.Equal(t, FailureInternal, failure.Kind)
}
