package worker

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/3leaps/queuectl/pkg/queue"
)

func TestRunShellSuccess(t *testing.T) {
	job := &queue.Job{Command: "echo hello", TimeoutSeconds: 10}

	res := runShell(job)

	if res.spawnErr != nil {
		t.Fatalf("spawn error: %v", res.spawnErr)
	}
	if res.timedOut {
		t.Fatal("unexpected timeout")
	}
	if res.exitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.exitCode)
	}
	if !strings.Contains(res.stdout, "hello") {
		t.Fatalf("stdout = %q, want it to contain %q", res.stdout, "hello")
	}
	if res.elapsed < 0 {
		t.Fatalf("elapsed = %v", res.elapsed)
	}
}

func TestRunShellCapturesStderrSeparately(t *testing.T) {
	job := &queue.Job{Command: "echo out; echo err >&2; exit 3", TimeoutSeconds: 10}

	res := runShell(job)

	if res.exitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.exitCode)
	}
	if !strings.Contains(res.stdout, "out") || strings.Contains(res.stdout, "err") {
		t.Fatalf("stdout = %q", res.stdout)
	}
	if !strings.Contains(res.stderr, "err") {
		t.Fatalf("stderr = %q", res.stderr)
	}
}

func TestRunShellSupportsShellSyntax(t *testing.T) {
	// Pipes must work: the raw string goes to sh -c.
	job := &queue.Job{Command: "printf 'a\\nb\\nc\\n' | wc -l", TimeoutSeconds: 10}

	res := runShell(job)

	if res.exitCode != 0 {
		t.Fatalf("exit code = %d, stderr=%q", res.exitCode, res.stderr)
	}
	if !strings.Contains(res.stdout, "3") {
		t.Fatalf("stdout = %q, want line count 3", res.stdout)
	}
}

func TestRunShellTimeout(t *testing.T) {
	job := &queue.Job{Command: "sleep 30", TimeoutSeconds: 1}

	start := time.Now()
	res := runShell(job)
	elapsed := time.Since(start)

	if !res.timedOut {
		t.Fatal("expected timeout")
	}
	// SIGTERM lands right after the 1s budget; sleep dies to it well inside
	// the 5s kill grace.
	if elapsed > 6*time.Second {
		t.Fatalf("timeout took %v, want under ~6s", elapsed)
	}
}

func TestFailureMessage(t *testing.T) {
	job := &queue.Job{TimeoutSeconds: 7}

	tests := []struct {
		name string
		res  execResult
		want string
	}{
		{
			name: "timeout wins over everything",
			res:  execResult{timedOut: true, stderr: "noise"},
			want: "Job timed out after 7 seconds",
		},
		{
			name: "spawn error",
			res:  execResult{spawnErr: errors.New("fork/exec: no such file")},
			want: "fork/exec: no such file",
		},
		{
			name: "stderr preferred for non-zero exit",
			res:  execResult{exitCode: 2, stderr: "bad flag"},
			want: "bad flag",
		},
		{
			name: "fallback to exit code",
			res:  execResult{exitCode: 9},
			want: "Command failed with exit code 9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := failureMessage(job, tt.res)
			if got != tt.want {
				t.Fatalf("failureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
