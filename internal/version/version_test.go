package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColoredKeepsText(t *testing.T) {
	orig := Version
	origNoColor := color.NoColor
	defer func() {
		Version = orig
		color.NoColor = origNoColor
	}()

	Version = "1.2.3-rc1"
	color.NoColor = true
	if got := Colored(); got != "1.2.3-rc1" {
		t.Fatalf("Colored() without colour = %q", got)
	}
	color.NoColor = false
	got := Colored()
	if !strings.Contains(got, "\x1b[") || !strings.HasSuffix(got, "-rc1") {
		t.Fatalf("Colored() = %q", got)
	}
}

func TestDetailsOptionalFields(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	defer func() { GitCommit, BuildDate = origCommit, origDate }()

	GitCommit, BuildDate = "", ""
	d := Details(false)
	if !strings.HasPrefix(d, "spark "+Version+"\n") || strings.Contains(d, "commit:") {
		t.Fatalf("Details = %q", d)
	}
	GitCommit, BuildDate = "abc123", "2024-01-15T10:30:00Z"
	d = Details(false)
	for _, want := range []string{"commit: abc123\n", "built:  2024-01-15T10:30:00Z\n", "go:     go"} {
		if !strings.Contains(d, want) {
			t.Errorf("Details lacks %q:\n%s", want, d)
		}
	}
}
