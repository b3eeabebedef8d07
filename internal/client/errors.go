package client

import "fmt"

// The four failure kinds every upstream call can signal. Pipeline stages
// never catch these; they propagate to the job boundary where they are
// captured into the job row and later translated back into HTTP
// categories by the status endpoint.

type ObjectNotFoundError struct {
	error
}

func NewObjectNotFoundError(format string, args ...interface{}) *ObjectNotFoundError {
	return &ObjectNotFoundError{fmt.Errorf(format, args...)}
}

type APIConnectionError struct {
	error
}

func NewAPIConnectionError(url string, cause error) *APIConnectionError {
	return &APIConnectionError{fmt.Errorf("failed to connect to %s: %v", url, cause)}
}

type APITimeoutError struct {
	error
}

func NewAPITimeoutError(url string, cause error) *APITimeoutError {
	return &APITimeoutError{fmt.Errorf("timed out waiting for %s: %v", url, cause)}
}

type InvalidStatusCodeError struct {
	error
	StatusCode int
}

func NewInvalidStatusCodeError(url string, statusCode int) *InvalidStatusCodeError {
	return &InvalidStatusCodeError{
		error:      fmt.Errorf("unexpected status code %d on %s", statusCode, url),
		StatusCode: statusCode,
	}
}
