package analysis

import (
	"testing"

	"github.com/kiranshivaraju/noisegate/pkg/models"
)

func TestIsNoise_DefaultLogPatterns(t *testing.T) {
	f := DefaultNoiseFilter()
	tests := []struct {
		msg   string
		noise bool
	}{
		{"health check passed", true},
		{"Healthcheck OK", true},
		{"read tcp 10.0.0.1:443: connection reset by peer", true},
		{"rpc error: Context Canceled", true},
		{"http: request canceled while waiting", true},
		{"unexpected EOF", true},
		{"geofence update failed", false},
		{"DB timeout after 100ms", false},
		{"Payment processing error: transaction 42", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := f.IsNoise(logEvent(tt.msg)); got != tt.noise {
				t.Errorf("IsNoise(%q) = %v, want %v", tt.msg, got, tt.noise)
			}
		})
	}
}

func TestIsNoise_AlertsNeverNoiseByDefault(t *testing.T) {
	f := DefaultNoiseFilter()
	if f.IsNoise(alertEvent("SyntheticProbe", models.SeverityInfo, "health check failed")) {
		t.Error("alerts should not match the log noise list")
	}
}

func TestIsNoise_CustomAlertPatterns(t *testing.T) {
	f, err := NewNoiseFilter(nil, []string{`^watchdog`})
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsNoise(alertEvent("Watchdog", models.SeverityInfo, "Watchdog heartbeat")) {
		t.Error("expected custom alert pattern to match case-insensitively")
	}
	if f.IsNoise(logEvent("health check passed")) {
		t.Error("empty log pattern list should match nothing")
	}
}

func TestIsNoise_AlertNameMatches(t *testing.T) {
	f, err := NewNoiseFilter(nil, []string{`^watchdog$`})
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsNoise(alertEvent("Watchdog", models.SeverityInfo, "")) {
		t.Error("expected alert name to match")
	}
	if f.IsNoise(alertEvent("WatchdogDown", models.SeverityCritical, "")) {
		t.Error("anchored pattern should not match a longer name")
	}
}

func TestIsNoise_UnknownKind(t *testing.T) {
	f := DefaultNoiseFilter()
	if f.IsNoise(models.Event{Kind: models.Kind(9), Message: "health check"}) {
		t.Error("unknown kinds are never noise")
	}
}

func TestNewNoiseFilter_InvalidPattern(t *testing.T) {
	if _, err := NewNoiseFilter([]string{"("}, nil); err == nil {
		t.Error("expected compile error")
	}
}
