package openfda

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/resilience"
)

// isNotFoundStatus spots openFDA's empty-result answer: HTTP 404 with a
// NOT_FOUND error body. That is a definitive zero-match outcome, not a
// transport failure.
func isNotFoundStatus(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func classifyRegistryError(err error) resilience.ErrorVerdict {
	if err == nil {
		return resilience.ErrorVerdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorVerdict{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorVerdict{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorVerdict{Retryable: true, RecordFailure: true}
		}
		// 404 is a valid empty result set and must not trip the breaker.
		if statusErr.StatusCode == http.StatusNotFound {
			return resilience.ErrorVerdict{Retryable: false, RecordFailure: false}
		}
		return resilience.ErrorVerdict{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorVerdict{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorVerdict{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	verdict := classifyRegistryError(err)
	if verdict.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
