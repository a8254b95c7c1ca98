package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/renoguard/internal/ledger/filestore"
	"github.com/davidahmann/renoguard/internal/ledger/ledgertest"
	"github.com/davidahmann/renoguard/pkg/types"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"renoguard"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	if code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
	if !strings.Contains(stderr, "RenoGuard CLI") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
	for _, args := range [][]string{{"nope"}, {"policy"}, {"policy", "nope"}, {"audit"}, {"audit", "nope"}} {
		if code, _, _ := runCLI(t, "", args...); code != 2 {
			t.Fatalf("%v: expected code 2, got %d", args, code)
		}
	}
}

func TestEvaluateFromStdin(t *testing.T) {
	req := `{"target":"KITCHEN_COUNTERTOP","signals":{"finalTags":["HAS_CHILD","CLEANING_SYSTEM_NEED"]},"payload":{"material":"PET_GLOSS"}}`
	code, stdout, stderr := runCLI(t, req, "evaluate", "-")
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr)
	}
	var out struct {
		Envelope types.DecisionEnvelope `json:"envelope"`
		UI       types.UIContract       `json:"ui"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, stdout)
	}
	if out.Envelope.Result != types.VerdictWarn || out.UI.DecisionResult != types.VerdictWarn {
		t.Fatalf("unexpected output: %s", stdout)
	}
}

func TestEvaluateResultFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	if err := os.WriteFile(path, []byte(`{"target":"KITCHEN_COUNTERTOP","payload":{"material":"PORCELAIN"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, stdout, stderr := runCLI(t, "", "evaluate", "-result", path)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr)
	}
	var res types.DecisionResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Result != types.VerdictPass || strings.Contains(stdout, `"alternatives"`) {
		t.Fatalf("unexpected result: %s", stdout)
	}
}

func TestEvaluateWithPolicyFile(t *testing.T) {
	policyPath := filepath.Join("..", "..", "policies", "renoguard.yaml")
	code, _, stderr := runCLI(t, `{"target":"KITCHEN_COUNTERTOP","payload":{"material":"QUARTZ"}}`, "evaluate", "-policy", policyPath)
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr)
	}
	if code, _, _ := runCLI(t, `{}`, "evaluate", "-policy", "missing.yaml"); code != 1 {
		t.Fatalf("expected code 1 for missing policy, got %d", code)
	}
}

func TestEvaluateErrors(t *testing.T) {
	if code, _, _ := runCLI(t, "{invalid", "evaluate"); code != 1 {
		t.Fatalf("expected code 1 for invalid json, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "evaluate", "missing.json"); code != 1 {
		t.Fatalf("expected code 1 for missing file, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "evaluate", "a.json", "b.json"); code != 2 {
		t.Fatalf("expected code 2 for extra args, got %d", code)
	}
}

func TestPolicyLint(t *testing.T) {
	code, stdout, stderr := runCLI(t, "", "policy", "lint", filepath.Join("..", "..", "policies", "renoguard.yaml"))
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "ok policy_id=renoguard-default") || !strings.Contains(stdout, "policy_hash=sha256:") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("policy_id: x\nunknown_key: 1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code, _, _ := runCLI(t, "", "policy", "lint", bad); code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "policy", "lint"); code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
}

func seedAudit(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	s := filestore.New(dir)
	ctx := context.Background()
	for _, e := range []types.AuditLogEntry{
		ledgertest.SampleEntry("e1", "2026-03-01T10:00:00Z"),
		ledgertest.SampleEntry("e2", "2026-03-01T11:00:00Z"),
		ledgertest.SampleEntry("e3", "2026-03-02T11:00:00Z"),
	} {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return dir
}

func TestAuditList(t *testing.T) {
	dir := seedAudit(t)
	code, stdout, stderr := runCLI(t, "", "audit", "list", "-dir", dir, "-day", "2026-03-01")
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(lines), stdout)
	}

	code, stdout, _ = runCLI(t, "", "audit", "list", "-dir", dir, "-limit", "1")
	if code != 0 || len(strings.Split(strings.TrimSpace(stdout), "\n")) != 1 {
		t.Fatalf("limit not applied: code=%d %s", code, stdout)
	}
	if code, _, _ := runCLI(t, "", "audit", "list", "-dir", dir, "-day", "yesterday"); code != 1 {
		t.Fatalf("expected code 1 for bad day, got %d", code)
	}
}

func TestAuditVerify(t *testing.T) {
	dir := seedAudit(t)
	code, stdout, stderr := runCLI(t, "", "audit", "verify", "-dir", dir, "-day", "2026-03-01")
	if code != 0 {
		t.Fatalf("expected code 0, got %d: %s %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "checked=2 bad=0") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}

	path := filepath.Join(dir, filestore.FileName("2026-03-01"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tampered := strings.Replace(string(data), `"material":"PET_GLOSS"`, `"material":"QUARTZ"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	code, stdout, _ = runCLI(t, "", "audit", "verify", "-dir", dir, "-day", "2026-03-01")
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if !strings.Contains(stdout, "tampered line=1 entry_id=e1") || !strings.Contains(stdout, "bad=1") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestAuditVerifyRejectsBadDay(t *testing.T) {
	if code, _, _ := runCLI(t, "", "audit", "verify", "-dir", t.TempDir(), "-day", "../x"); code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("RENOGUARD_TEST_ENV", "value")
	if got := envOrDefault("RENOGUARD_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("expected value, got %s", got)
	}
	if got := envOrDefault("RENOGUARD_TEST_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestMainUsesExitFn(t *testing.T) {
	oldExit := exitFn
	oldArgs := os.Args
	defer func() {
		exitFn = oldExit
		os.Args = oldArgs
	}()

	got := -1
	exitFn = func(code int) { got = code }
	os.Args = []string{"renoguard"}
	main()
	if got != 2 {
		t.Fatalf("expected exit 2, got %d", got)
	}
}
