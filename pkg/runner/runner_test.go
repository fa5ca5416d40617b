package runner

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintBannerIncludesVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, false)
	if !strings.Contains(buf.String(), "Version: "+Version) {
		t.Fatalf("expected version line, got %q", buf.String())
	}
}
