package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +86 138 1234 5678"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com and phone +86 138 1234 5678"
	got := Text(in)
	if got == in {
		t.Fatalf("expected redaction")
	}
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
}

func TestSecret(t *testing.T) {
	if got := Secret("abcdef123456"); got != "****3456" {
		t.Fatalf("expected masked secret, got %q", got)
	}
	if got := Secret("abc"); got != "****" {
		t.Fatalf("expected fully masked short secret, got %q", got)
	}
	if got := Secret("  "); got != "" {
		t.Fatalf("expected empty for blank secret, got %q", got)
	}
}

func TestURLMasksAuthorization(t *testing.T) {
	raw := "wss://ws-api.xfyun.cn/v2/iat?authorization=c2VjcmV0&date=Tue%2C+14+Oct+2025+08%3A00%3A00+GMT&host=ws-api.xfyun.cn"
	got := URL(raw)
	if strings.Contains(got, "c2VjcmV0") {
		t.Fatalf("expected authorization to be masked, got %q", got)
	}
	if !strings.Contains(got, "host=ws-api.xfyun.cn") {
		t.Fatalf("expected host to survive, got %q", got)
	}
}
