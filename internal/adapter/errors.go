package adapter

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Transport errors classified from provider responses. Callers should use
// [errors.Is] to match; the original response body is carried in the
// wrapping message.
var (
	// ErrUnauthorized maps HTTP 401: the API key is missing or wrong.
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrForbidden maps HTTP 403: the key is valid but not allowed.
	ErrForbidden = errors.New("provider forbids this operation")

	// ErrRateLimited maps HTTP 429.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrBadRequest maps HTTP 400–499 not covered above.
	ErrBadRequest = errors.New("provider rejected request")

	// ErrServer maps HTTP 5xx.
	ErrServer = errors.New("provider server error")

	// ErrNetwork marks transport-level failures where no HTTP response was
	// received at all.
	ErrNetwork = errors.New("provider unreachable")
)

// mapHTTPError translates a non-2xx provider response into one of the
// sentinel errors above, preserving the response body for diagnostics.
func mapHTTPError(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	var sentinel error
	switch code := resp.StatusCode(); {
	case code == 401:
		sentinel = ErrUnauthorized
	case code == 403:
		sentinel = ErrForbidden
	case code == 429:
		sentinel = ErrRateLimited
	case code >= 500:
		sentinel = ErrServer
	default:
		sentinel = ErrBadRequest
	}

	body := resp.String()
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode(), body)
}

// Classify reduces a transport error to the stable labels stored on a
// provider's LastError field.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "rate-limited"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
