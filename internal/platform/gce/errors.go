package gce

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// IsNotFound reports whether err is the result of the server replying with
// http.StatusNotFound.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// isAlreadyExists reports whether the server rejected a create because the
// resource exists.
func isAlreadyExists(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// isTransient reports whether a request failed for a reason that may clear up
// on its own: quota throttling or a server-side error.
func isTransient(err error) bool {
	return hasStatus(err,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	)
}

func hasStatus(err error, codes ...int) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
}
