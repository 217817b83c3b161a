package usecase

import (
	"errors"
	"net/http"
	"net/url"
)

// FailureClass is the category of a failed agent request.
type FailureClass int

const (
	// FailureGeneric covers non-429 statuses and any other non-transport error.
	FailureGeneric FailureClass = iota
	// FailureQuotaExhausted is an HTTP 429 from the backend.
	FailureQuotaExhausted
	// FailureNetwork is a transport failure that carried no HTTP status.
	FailureNetwork
)

func (c FailureClass) String() string {
	switch c {
	case FailureQuotaExhausted:
		return "quota_exhausted"
	case FailureNetwork:
		return "network"
	default:
		return "generic"
	}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ClassifyFailure picks exactly one class for err.
func ClassifyFailure(err error) FailureClass {
	if status, ok := upstreamStatusCode(err); ok {
		if status == http.StatusTooManyRequests {
			return FailureQuotaExhausted
		}
		return FailureGeneric
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailureNetwork
	}
	return FailureGeneric
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
