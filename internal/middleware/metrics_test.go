package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsAuthMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		username   string
		password   string
		reqUser    string
		reqPass    string
		sendCreds  bool
		wantStatus int
	}{
		{
			name:       "auth disabled passes through",
			wantStatus: http.StatusOK,
		},
		{
			name:       "correct credentials",
			username:   "metrics",
			password:   "secret",
			reqUser:    "metrics",
			reqPass:    "secret",
			sendCreds:  true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			username:   "metrics",
			password:   "secret",
			reqUser:    "metrics",
			reqPass:    "wrong",
			sendCreds:  true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing credentials",
			username:   "metrics",
			password:   "secret",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewMetricsAuthMiddleware(tt.username, tt.password)
			handler := mw.Handler(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.sendCreds {
				req.SetBasicAuth(tt.reqUser, tt.reqPass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401")
			}
		})
	}
}
