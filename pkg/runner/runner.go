package runner

import (
	"bytes"
	"io"
	"os"

	"github.com/dimiro1/banner"
)

// Version is overridden at build time with -ldflags "-X ...runner.Version=".
var Version = "dev"

// PrintBanner writes the startup banner to w (stdout when nil).
func PrintBanner(w io.Writer, color bool) {
	if w == nil {
		w = os.Stdout
	}
	tpl := "{{ .Title \"NAVVOICE\" \"\" 0 }}\nVersion: " + Version + "\nStreaming speech recognition for voice navigation\n"
	banner.Init(w, true, color, bytes.NewBufferString(tpl))
}
