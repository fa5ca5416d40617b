package main

import (
	"bytes"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/navvoice/pkg/adapters/stt"
	"github.com/harunnryd/navvoice/pkg/errorsx"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestSignURLRedactsByDefault(t *testing.T) {
	t.Setenv("XFYUN_APP_ID", "app123")
	t.Setenv("XFYUN_API_KEY", "key456")
	t.Setenv("XFYUN_API_SECRET", "secret789")

	out, err := runCLI(t, "sign-url")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := url.Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("output is not a url: %q", out)
	}
	if u.Host != "ws-api.xfyun.cn" || u.Query().Get("authorization") != "REDACTED" {
		t.Fatalf("expected redacted signed url, got %s", out)
	}

	out, err = runCLI(t, "sign-url", "--show")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "REDACTED") {
		t.Fatalf("expected full url with --show, got %s", out)
	}
}

func TestSignURLPlaceholderCredentials(t *testing.T) {
	t.Setenv("XFYUN_APP_ID", "your-xfyun-app-id")
	t.Setenv("XFYUN_API_KEY", "key456")
	t.Setenv("XFYUN_API_SECRET", "secret789")

	_, err := runCLI(t, "sign-url")
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config_error, got %v", err)
	}
}

func TestReplayRequiresFile(t *testing.T) {
	if _, err := runCLI(t, "replay"); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	_, err := runCLI(t, "sign-url", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config_error, got %v", err)
	}
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, stt.Outcome{
		Text:    "开始导航",
		Reason:  stt.ReasonKeyword,
		Keyword: "开始导航",
		Elapsed: 1500 * time.Millisecond,
	})
	out := buf.String()
	for _, want := range []string{"reason:  keyword", "keyword: 开始导航", "text:    开始导航", "elapsed: 1.5s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}

	buf.Reset()
	printOutcome(&buf, stt.Outcome{Reason: stt.ReasonTransportError, Err: errors.New("dial refused")})
	if !strings.Contains(buf.String(), "error:   dial refused") {
		t.Fatalf("expected error line, got %q", buf.String())
	}
}
