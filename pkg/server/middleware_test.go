// Copyright (c) 2025, Logilab.  All rights reserved.
// Portions Copyright (c) 2025, NVIDIA CORPORATION.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func newTestServer(limit rate.Limit, burst int) *Server {
	return &Server{
		config:      NewConfig(),
		rateLimiter: rate.NewLimiter(limit, burst),
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	provided := uuid.New().String()

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated when absent", "", false},
		{"kept when valid", provided, true},
		{"replaced when invalid", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(100, 200)

			var got string
			handler := s.requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
				got = RequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/jupyterlab-onyxia-composer/create", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected a UUID request ID, got %q", got)
			}
			if tt.keep && got != tt.header {
				t.Errorf("expected request ID %s, got %s", tt.header, got)
			}
			if !tt.keep && got == tt.header {
				t.Errorf("expected request ID %q to be replaced", tt.header)
			}
			if rec.Header().Get("X-Request-Id") != got {
				t.Errorf("expected X-Request-Id header %s, got %s", got, rec.Header().Get("X-Request-Id"))
			}
		})
	}
}

func TestRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := RequestID(req.Context()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}

func TestVersionMiddleware(t *testing.T) {
	s := newTestServer(100, 200)

	var got string
	handler := s.versionMiddleware(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value(contextKeyAPIVersion).(string)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/vnd.logilab.composer.v1+json")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if got != "v1" {
		t.Errorf("expected v1 in context, got %q", got)
	}
	if rec.Header().Get("X-API-Version") != "v1" {
		t.Errorf("expected X-API-Version v1, got %q", rec.Header().Get("X-API-Version"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		limiter    *Server
		wantCalled bool
		wantStatus int
		wantHeader string
	}{
		{"allows within limit", newTestServer(100, 200), true, http.StatusOK, "X-RateLimit-Remaining"},
		{"rejects without capacity", newTestServer(0, 0), false, http.StatusTooManyRequests, "Retry-After"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := tt.limiter.rateLimitMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if rec.Header().Get(tt.wantHeader) == "" {
				t.Errorf("expected %s header", tt.wantHeader)
			}
		})
	}
}

func TestPanicRecoveryMiddleware_PassesNormalRequests(t *testing.T) {
	s := newTestServer(100, 200)

	rec := httptest.NewRecorder()
	s.panicRecoveryMiddleware(okHandler)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestLoggingMiddleware_KeepsStatusCode(t *testing.T) {
	s := newTestServer(100, 200)

	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusBadRequest, http.StatusInternalServerError} {
		handler := s.loggingMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != status {
			t.Errorf("expected status %d, got %d", status, rec.Code)
		}
	}
}

func TestMiddlewareChain(t *testing.T) {
	s := newTestServer(100, 200)

	var hasRequestID, hasAPIVersion bool
	handler := s.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		hasRequestID = RequestID(r.Context()) != ""
		hasAPIVersion = r.Context().Value(contextKeyAPIVersion) != nil
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/jupyterlab-onyxia-composer/services", nil))

	if !hasRequestID || !hasAPIVersion {
		t.Errorf("expected request ID and API version in context, got %v/%v", hasRequestID, hasAPIVersion)
	}
	for _, header := range []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-API-Version"} {
		if rec.Header().Get(header) == "" {
			t.Errorf("expected header %s to be set", header)
		}
	}
}
