package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadRules_EmptyPathReturnsDefaults(t *testing.T) {
	r, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.Retention.Weight != 0.7 || r.Retention.PersonalCoeff != 0.3 || r.Retention.RatePerStudent != 30 {
		t.Fatalf("defaults unexpected: %+v", r.Retention)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadRules_OverlaysFile(t *testing.T) {
	p := writeFile(t, "rules.yaml", `
retention:
  group:
    gk: {min: 60, max: 80}
`)
	r, err := LoadRules(p)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if got := r.Retention.Thresholds("Сотник", false); got.Min != 60 || got.Max != 80 {
		t.Fatalf("group gk = %+v", got)
	}
	// untouched keys keep their defaults
	if got := r.Retention.Thresholds("Личный", true); got != DefaultRules().Retention.Personal.GKP {
		t.Fatalf("personal gkp = %+v", got)
	}
	if r.Retention.Weight != 0.7 {
		t.Fatalf("weight should keep default, got %v", r.Retention.Weight)
	}
}

func TestLoadRules_Errors(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
	bad := writeFile(t, "bad.yaml", "retention: [")
	if _, err := LoadRules(bad); err == nil || !strings.Contains(err.Error(), "parse rules") {
		t.Fatalf("expected parse error, got %v", err)
	}
	inverted := writeFile(t, "inv.yaml", "retention:\n  personal:\n    gk: {min: 90, max: 10}\n")
	if _, err := LoadRules(inverted); err == nil || !strings.Contains(err.Error(), "personal.gk") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	p := writeFile(t, "test.env", "PAYROLL_DOTENV_A=from-file\nPAYROLL_DOTENV_B=from-file\n")
	t.Setenv("PAYROLL_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("PAYROLL_DOTENV_A") })

	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), p)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != p {
		t.Fatalf("loaded = %v", loaded)
	}
	if os.Getenv("PAYROLL_DOTENV_A") != "from-file" {
		t.Fatalf("A not loaded")
	}
	if os.Getenv("PAYROLL_DOTENV_B") != "from-env" {
		t.Fatalf("existing env must win")
	}
}
