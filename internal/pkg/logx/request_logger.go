/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains an http.RoundTripper decorator that logs the lifecycle of outgoing
API requests: method, path, response status and latency. Query strings are not logged
because they may carry credentials.
*/
package logx

import (
	"net/http"
	"time"
)

// RequestLogger wraps next (http.DefaultTransport when nil) with request logging.
func RequestLogger(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		logger := Logger().With().
			Str("component", "http").
			Str("request_method", r.Method).
			Str("request_path", r.URL.Path).
			Logger()

		t1 := time.Now()
		res, err := next.RoundTrip(r)
		if err != nil {
			logger.Warn().Err(err).Dur("latency", time.Since(t1)).Msg("Request failed")
			return nil, err
		}

		logEvent := logger.Debug()
		if res.StatusCode >= 500 {
			logEvent = logger.Error()
		} else if res.StatusCode >= 400 {
			logEvent = logger.Warn()
		}

		logEvent.
			Int("status", res.StatusCode).
			Dur("latency", time.Since(t1)).
			Msg("Request completed")

		return res, nil
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
