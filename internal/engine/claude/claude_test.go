package claude

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jywlabs/prdforge/internal/engine"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{name: "success envelope", out: `{"type":"result","subtype":"success","is_error":false,"result":"hello"}`, want: "hello"},
		{name: "error flag", out: `{"type":"result","subtype":"success","is_error":true,"result":"quota"}`, wantErr: true},
		{name: "error subtype", out: `{"type":"result","subtype":"error_max_turns","is_error":false}`, wantErr: true},
		{name: "empty result", out: `{"type":"result","subtype":"success","result":"  "}`, wantErr: true},
		{name: "plain text", out: "just text\n", want: "just text"},
		{name: "empty output", out: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	e := New(&engine.EngineConfig{Model: "sonnet"})
	args := e.BuildArgs("do it", engine.Options{SystemPrompt: "be terse"})
	joined := strings.Join(args, " ")

	for _, want := range []string{"-p", "--output-format json", "--model sonnet", "--append-system-prompt be terse"} {
		if !strings.Contains(joined, want) {
			t.Errorf("BuildArgs() = %q, missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "do it" {
		t.Errorf("last arg = %q, want prompt", args[len(args)-1])
	}
}

func TestNew_Defaults(t *testing.T) {
	if got := New(nil).Timeout; got != engine.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", got, engine.DefaultTimeout)
	}
	if got := New(&engine.EngineConfig{Timeout: time.Minute}).Timeout; got != time.Minute {
		t.Errorf("Timeout = %v, want 1m", got)
	}
}

func TestGenerate_FakeCLI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture is unix-only")
	}

	binDir := t.TempDir()
	writeFakeClaude(t, binDir, "#!/bin/sh\nprintf '{\"type\":\"result\",\"subtype\":\"success\",\"is_error\":false,\"result\":\"{\\\\\"ok\\\\\":true}\"}'\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	out, err := New(&engine.EngineConfig{Timeout: 5 * time.Second}).Generate(context.Background(), "prompt", engine.Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("Generate() = %q, want %q", out, `{"ok":true}`)
	}
}

func TestGenerate_AllowsNonZeroWithStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture is unix-only")
	}

	binDir := t.TempDir()
	writeFakeClaude(t, binDir, "#!/bin/sh\nprintf 'partial response'\nexit 1\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	out, err := New(&engine.EngineConfig{Timeout: 2 * time.Second}).Generate(context.Background(), "prompt", engine.Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v, want nil", err)
	}
	if out != "partial response" {
		t.Errorf("Generate() = %q, want %q", out, "partial response")
	}
}

func TestGenerate_PreservesCanceledContextError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture is unix-only")
	}

	binDir := t.TempDir()
	writeFakeClaude(t, binDir, "#!/bin/sh\nprintf 'partial'\nsleep 5\nexit 1\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	out, err := New(&engine.EngineConfig{Timeout: 10 * time.Second}).Generate(ctx, "prompt", engine.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if out != "" {
		t.Errorf("Generate() = %q, want empty when canceled", out)
	}
}

func writeFakeClaude(t *testing.T, dir, script string) {
	t.Helper()

	path := filepath.Join(dir, "claude")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
