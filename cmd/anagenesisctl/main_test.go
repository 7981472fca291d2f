package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}

func TestRunCommandUsageErrors(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
	if err := run(context.Background(), []string{"nonesuch"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestInitCommandMemory(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"init", "-store", "memory"})
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "initialized store=memory") {
		t.Fatalf("unexpected init output: %q", out)
	}
}

func TestRunCommandMemory(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run",
			"-store", "memory",
			"-pop", "20",
			"-iterations", "3",
			"-genome-length", "4",
			"-species", "2",
			"-seed", "5",
		})
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "finished") || !strings.Contains(out, "iterations  3") {
		t.Fatalf("unexpected run output: %q", out)
	}
}

func TestRunCommandConfigWithFlagOverride(t *testing.T) {
	path := writeConfig(t, `{"population": 20, "iterations": 2, "genome_length": 4, "specie_count": 2, "seed": 9}`)

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run",
			"-store", "memory",
			"-config", path,
			"-iterations", "4",
		})
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The flag overrides the config file's iteration count.
	if !strings.Contains(out, "iterations  4") {
		t.Fatalf("expected flag override in output: %q", out)
	}
}

func TestRunCommandRejectsBadBenchmark(t *testing.T) {
	err := run(context.Background(), []string{"run", "-store", "memory", "-benchmark", "nonesuch"})
	if err == nil || !strings.Contains(err.Error(), "unknown benchmark") {
		t.Fatalf("expected unknown benchmark error, got %v", err)
	}
}

func TestRunsCommandEmptyStore(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs", "-store", "memory"})
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "no runs found") {
		t.Fatalf("unexpected runs output: %q", out)
	}
}

func TestDeleteCommandRequiresRunID(t *testing.T) {
	err := run(context.Background(), []string{"delete", "-store", "memory"})
	if err == nil || !strings.Contains(err.Error(), "run-id") {
		t.Fatalf("expected run-id error, got %v", err)
	}
}
