package errx

import (
	"fmt"
	"net/http"
)

// WrapHTTP wraps a failed request to the storefront API. A transport error maps to 502;
// an unexpected response status is carried through.
func WrapHTTP(err error, status int) error {
	if err == nil && status >= 200 && status < 300 {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected status %d", status)
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return New(err, status, UpstreamErrorMessage)
}
