package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// doRequest issues one HTTP call and maps the transport-level outcomes
// onto the client error taxonomy. A 404 or 204 yields (nil, nil) so the
// caller can decide whether an absent object is an error for its
// operation. Everything outside 2xx is an InvalidStatusCodeError.
func doRequest(ctx context.Context, httpClient *http.Client, method, rawURL string, params url.Values, apiKey string, body interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, NewAPITimeoutError(rawURL, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewAPITimeoutError(rawURL, err)
		}
		return nil, NewAPIConnectionError(rawURL, err)
	}
	defer resp.Body.Close()

	zap.S().Named("client").Debugw("request sent",
		"method", method, "url", rawURL, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, NewAPIConnectionError(rawURL, err)
		}
		return data, nil
	default:
		respText, _ := io.ReadAll(resp.Body)
		zap.S().Named("client").Errorw("unexpected upstream status",
			"method", method, "url", rawURL, "status", resp.StatusCode, "response", string(respText))
		return nil, NewInvalidStatusCodeError(rawURL, resp.StatusCode)
	}
}

func doGet(ctx context.Context, httpClient *http.Client, rawURL string, params url.Values, apiKey string) (json.RawMessage, error) {
	return doRequest(ctx, httpClient, http.MethodGet, rawURL, params, apiKey, nil)
}

func doPost(ctx context.Context, httpClient *http.Client, rawURL string, apiKey string, body interface{}) (json.RawMessage, error) {
	return doRequest(ctx, httpClient, http.MethodPost, rawURL, nil, apiKey, body)
}

func doDelete(ctx context.Context, httpClient *http.Client, rawURL string, params url.Values, apiKey string) (json.RawMessage, error) {
	return doRequest(ctx, httpClient, http.MethodDelete, rawURL, params, apiKey, nil)
}
