package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/UnknownOlympus/staffdesk/internal/server"
	"github.com/stretchr/testify/require"
)

type MockDBPinger struct {
	ShouldFail bool
}

func (m *MockDBPinger) Ping(_ context.Context) error {
	if m.ShouldFail {
		return errors.New("mock db error")
	}
	return nil
}

func TestHealthChecker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	webhookWithStatus := func(code int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))
	}

	cases := []struct {
		name         string
		webhookCode  int
		webhookURL   string
		dbFails      bool
		expectedCode int
		expectedBody string
	}{
		{
			name:         "all systems ok",
			webhookCode:  http.StatusOK,
			expectedCode: http.StatusOK,
			expectedBody: `{"database":"ok","webhook":"ok"}`,
		},
		{
			name:         "webhook rejects HEAD",
			webhookCode:  http.StatusMethodNotAllowed,
			expectedCode: http.StatusOK,
			expectedBody: `{"database":"ok","webhook":"ok"}`,
		},
		{
			name:         "database unavailable",
			webhookCode:  http.StatusOK,
			dbFails:      true,
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"database":"unavailable","webhook":"ok"}`,
		},
		{
			name:         "webhook degraded",
			webhookCode:  http.StatusBadGateway,
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"database":"ok","webhook":"degraded"}`,
		},
		{
			name:         "webhook unreachable",
			webhookURL:   "invalid_url",
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"database":"ok","webhook":"unreachable"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := tc.webhookURL
			if url == "" {
				webhook := webhookWithStatus(tc.webhookCode)
				defer webhook.Close()
				url = webhook.URL
			}

			healthChecker := server.NewHealthChecker(&MockDBPinger{ShouldFail: tc.dbFails}, url, logger)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rr := httptest.NewRecorder()

			healthChecker.ServeHTTP(rr, req)

			require.Equal(t, tc.expectedCode, rr.Code)
			require.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}
