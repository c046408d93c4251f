package client

import (
	"errors"
	"log/slog"
	"net/http"
)

const maxRedirects = 5

var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// CreateHTTPClient initializes an HTTP client for outbound calls. Redirects are followed and logged,
// request lifetime is bounded by the caller's context.
func CreateHTTPClient(log *slog.Logger) *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			log.Debug("Redirected to URL", "URL", req.URL)

			return nil
		},
	}
}
