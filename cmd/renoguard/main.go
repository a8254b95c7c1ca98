package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/davidahmann/renoguard/internal/api"
	"github.com/davidahmann/renoguard/internal/decision"
	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/internal/ledger/filestore"
	"github.com/davidahmann/renoguard/internal/policy"
	"github.com/davidahmann/renoguard/internal/risk"
	"github.com/davidahmann/renoguard/internal/rules"
	"github.com/davidahmann/renoguard/pkg/types"
)

const defaultAuditDir = "logs/decision"

func main() {
	exitFn(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "evaluate":
		return handleEvaluate(args[2:], stdin, stdout, stderr)
	case "policy":
		return handlePolicy(args[2:], stdout, stderr)
	case "audit":
		return handleAudit(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleEvaluate(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	policyPath := fs.String("policy", "", "threshold policy file (built-in policy when empty)")
	timeout := fs.Duration("timeout", decision.DefaultTimeout, "evaluation deadline")
	showResult := fs.Bool("result", false, "print the internal decision result instead of the envelope")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "evaluate takes at most one <request_file>")
		fs.Usage()
		return 2
	}

	var in io.Reader = stdin
	if path := fs.Arg(0); path != "" && path != "-" {
		// #nosec G304 -- path is the operator's request file.
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		defer f.Close()
		in = f
	}

	var req api.DecisionRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintln(stderr, "invalid request:", err)
		return 1
	}

	engine := risk.Default()
	if *policyPath != "" {
		loaded, err := policy.LoadPolicy(*policyPath)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		engine = risk.NewEngine(loaded)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	dispatcher := decision.NewDispatcher(engine, rules.Default(), decision.Options{Timeout: *timeout, Logger: logger})
	service := &api.DecisionService{Dispatcher: dispatcher, Logger: logger}

	var out any
	if *showResult {
		out = service.Evaluate(context.Background(), req)
	} else {
		out = service.Decide(context.Background(), req)
	}
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func handlePolicy(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "lint":
		fs := flag.NewFlagSet("policy lint", flag.ContinueOnError)
		fs.SetOutput(stderr)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "policy lint requires <policy_path>")
			fs.Usage()
			return 2
		}
		loaded, err := policy.LoadPolicy(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "ok policy_id=%s policy_version=%s policy_hash=%s\n", loaded.Policy.PolicyID, loaded.Policy.PolicyVersion, loaded.Hash)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

func handleAudit(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "list":
		return handleAuditList(args[1:], stdout, stderr)
	case "verify":
		return handleAuditVerify(args[1:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleAuditList(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", envOrDefault("RENOGUARD_AUDIT_DIR", defaultAuditDir), "audit log directory")
	day := fs.String("day", "", "UTC day (YYYY-MM-DD); all days when empty")
	target := fs.String("target", "", "only entries for this target")
	limit := fs.Int("limit", 0, "maximum entries (0 for all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	entries, err := filestore.New(*dir).List(context.Background(), ledger.Filter{Day: *day, Target: types.Target(*target), Limit: *limit})
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
	}
	return 0
}

func handleAuditVerify(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", envOrDefault("RENOGUARD_AUDIT_DIR", defaultAuditDir), "audit log directory")
	day := fs.String("day", time.Now().UTC().Format(ledger.DayLayout), "UTC day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	lines, err := filestore.New(*dir).Lines(context.Background(), *day)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	bad := 0
	for _, line := range lines {
		if line.Err == nil {
			continue
		}
		bad++
		reason := "tampered"
		if !errors.Is(line.Err, ledger.ErrDigestMismatch) {
			reason = "unreadable"
		}
		fmt.Fprintf(stdout, "%s line=%d entry_id=%s error=%s\n", reason, line.Number, line.Entry.EntryID, line.Err)
	}
	fmt.Fprintf(stdout, "checked=%d bad=%d file=%s\n", len(lines), bad, filestore.FileName(*day))
	if bad > 0 {
		return 1
	}
	return 0
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprint(w, `RenoGuard CLI

Usage:
  renoguard evaluate [-policy PATH] [-timeout D] [-result] [request.json|-]
  renoguard policy lint <policy_path>
  renoguard audit list [-dir DIR] [-day YYYY-MM-DD] [-target T] [-limit N]
  renoguard audit verify [-dir DIR] [-day YYYY-MM-DD]
`)
}
