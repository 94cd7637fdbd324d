package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: dialer-test
lead_source:
  static:
    - id: "1"
      phone: "+7 701 111 22 33"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Dialer.ParallelCalls != 2 {
		t.Errorf("parallel calls = %d", cfg.Dialer.ParallelCalls)
	}
	if cfg.Dialer.CallTimeout != 30*time.Second {
		t.Errorf("call timeout = %v", cfg.Dialer.CallTimeout)
	}
	if cfg.Dialer.WaitAfterCall != 3*time.Minute {
		t.Errorf("wait after call = %v", cfg.Dialer.WaitAfterCall)
	}
	if cfg.Dialer.AgentExtension != "100" {
		t.Errorf("agent extension = %q", cfg.Dialer.AgentExtension)
	}
	if cfg.Telephony.Provider != "mock" {
		t.Errorf("provider = %q", cfg.Telephony.Provider)
	}
	if len(cfg.LeadSource.Static) != 1 || cfg.LeadSource.Static[0].Phone != "+7 701 111 22 33" {
		t.Errorf("static leads = %+v", cfg.LeadSource.Static)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "app:\n  name: dialer-test\n")
	t.Setenv("DIALER_DIALER_PARALLEL_CALLS", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dialer.ParallelCalls != 4 {
		t.Fatalf("parallel calls = %d, want 4", cfg.Dialer.ParallelCalls)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"zero parallel calls": "dialer:\n  parallel_calls: 0\n",
		"unknown provider":    "telephony:\n  provider: carrier-pigeon\n",
		"onlinepbx no key":    "telephony:\n  provider: onlinepbx\n  onlinepbx:\n    domain: pbx.test\n",
		"postgres disabled":   "lead_source:\n  kind: postgres\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
