package cmd

import (
	"bytes"
	"strings"
	"testing"

	"ocrbot/internal/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	loaded := config.Default()
	loaded.DataDir = t.TempDir()
	cfg, cfgErr = loaded, nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestQuotaResetRequiresTarget(t *testing.T) {
	if _, err := runCLI(t, "quota", "reset"); err == nil {
		t.Fatalf("expected error without user id or --all")
	}
}

func TestQuotaShowAndReset(t *testing.T) {
	loaded := config.Default()
	loaded.DataDir = t.TempDir()
	cfg, cfgErr = loaded, nil

	st, err := openStores(loaded)
	if err != nil {
		t.Fatalf("openStores() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := st.quota.Consume(42); err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"quota", "show", "42"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("quota show error = %v", err)
	}
	if !strings.Contains(out.String(), "42: used 3, left 2") {
		t.Fatalf("quota show output = %q", out.String())
	}

	out.Reset()
	rootCmd.SetArgs([]string{"quota", "reset", "42"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("quota reset error = %v", err)
	}

	reopened, err := openStores(loaded)
	if err != nil {
		t.Fatalf("openStores() error = %v", err)
	}
	if used := reopened.quota.Used(42); used != 0 {
		t.Fatalf("used after reset = %d, want 0", used)
	}
}

func TestStatsCommand(t *testing.T) {
	out, err := runCLI(t, "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(out, "Total requests: 0") {
		t.Fatalf("stats output = %q", out)
	}
}

func TestParseUserID(t *testing.T) {
	if id, err := parseUserID("-1001"); err != nil || id != -1001 {
		t.Fatalf("parseUserID() = %d, %v", id, err)
	}
	if _, err := parseUserID("abc"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}
