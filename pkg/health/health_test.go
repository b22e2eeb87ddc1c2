package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all up", []Status{StatusUp, StatusUp}, StatusUp},
		{"one degraded", []Status{StatusUp, StatusDegraded}, StatusDegraded},
		{"one down", []Status{StatusUp, StatusDegraded, StatusDown}, StatusDown},
		{"no checks", nil, StatusUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, status := range tt.statuses {
				s := status
				c.Register(string(rune('a'+i)), func(ctx context.Context) ComponentHealth {
					return ComponentHealth{Status: s}
				})
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("overall status = %q, want %q", report.Status, tt.want)
			}
		})
	}
}

func TestRunRecordsComponents(t *testing.T) {
	c := NewChecker()
	c.Register("index", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusUp, Message: "42 terms loaded"}
	})
	report := c.Run(context.Background())

	comp, ok := report.Components["index"]
	if !ok {
		t.Fatal("component \"index\" missing from report")
	}
	if comp.Message != "42 terms loaded" {
		t.Errorf("message = %q", comp.Message)
	}
	if comp.Latency == "" {
		t.Error("latency not recorded")
	}
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	c := NewChecker()
	state := StatusUp
	c.Register("dep", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: state}
	})

	probe := func() int {
		rec := httptest.NewRecorder()
		c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		return rec.Code
	}

	if code := probe(); code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", code)
	}
	state = StatusDown
	if code := probe(); code != http.StatusServiceUnavailable {
		t.Errorf("unready status = %d, want 503", code)
	}
}
