package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestChecker_Liveness(t *testing.T) {
	checker := New("session-1", 0)
	checker.RegisterCheck("broken", func(context.Context) error { return errors.New("down") })

	status := checker.CheckLiveness(context.Background())
	if status.Status != StatusOK {
		t.Errorf("liveness must not depend on checks, got %q", status.Status)
	}
	if status.SessionID != "session-1" {
		t.Errorf("expected session id, got %q", status.SessionID)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"storage":  func(context.Context) error { return nil },
				"exporter": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"storage":  func(context.Context) error { return errors.New("permission denied") },
				"exporter": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"storage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New("s", 0)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
			for _, name := range tt.wantFailed {
				if status.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q should be unhealthy: %+v", name, status.Checks[name])
				}
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	checker := New("s", 20*time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("expected timeout result, got %+v", result)
	}
}

func TestChecker_ListChecks(t *testing.T) {
	checker := New("s", 0)
	checker.RegisterCheck("storage", func(context.Context) error { return nil })
	checker.RegisterCheck("exporter", func(context.Context) error { return nil })
	checker.RegisterCheck("storage", func(context.Context) error { return nil })

	if got, want := checker.ListChecks(), []string{"exporter", "storage"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListChecks() = %v, want %v", got, want)
	}
}

func TestHandlers(t *testing.T) {
	checker := New("s", 0)
	checker.RegisterCheck("storage", func(context.Context) error { return errors.New("gone") })

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		method   string
		wantCode int
		wantBody bool
	}{
		{name: "liveness", handler: checker.LivenessHandler(), method: http.MethodGet, wantCode: http.StatusOK, wantBody: true},
		{name: "readiness degraded", handler: checker.ReadinessHandler(), method: http.MethodGet, wantCode: http.StatusServiceUnavailable, wantBody: true},
		{name: "head has no body", handler: checker.LivenessHandler(), method: http.MethodHead, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("unexpected content type %q", ct)
			}
			if !tt.wantBody {
				if rec.Body.Len() != 0 {
					t.Errorf("expected empty body, got %q", rec.Body.String())
				}
				return
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if status.SessionID != "s" {
				t.Errorf("expected session id in body, got %q", status.SessionID)
			}
		})
	}
}
