package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/structura/theme"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STRUCTURA_DATA_DIR", dir)
	t.Setenv("STRUCTURA_THEME", "")
	t.Setenv("STRUCTURA_AUTH_HASH", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestThemesCommand(t *testing.T) {
	out, err := run(t, "themes")
	if err != nil {
		t.Fatal(err)
	}
	for _, th := range theme.Builtin() {
		if !strings.Contains(out, th.ID) {
			t.Errorf("themes output missing %q:\n%s", th.ID, out)
		}
	}
	if !strings.Contains(out, "classic_white") || !strings.Contains(out, "light") {
		t.Errorf("tone column missing:\n%s", out)
	}
}

func TestCSSCommand(t *testing.T) {
	out, err := run(t, "css", "--theme", "dark_blue")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := theme.NewRegistry().Stylesheet("dark_blue")
	if out != want.CSS {
		t.Error("css output differs from the registry stylesheet")
	}
	if _, err := run(t, "css", "--theme", "nope"); err == nil {
		t.Error("unknown theme accepted")
	}
}

func TestExtractCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.txt")
	if err := os.WriteFile(path, []byte("Quarterly memo\nRevenue grew."), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "extract", "--text", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Revenue grew.") {
		t.Errorf("extract --text = %q", out)
	}
	out, err = run(t, "extract", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"raw_text"`) || !strings.Contains(out, `"kind": "text"`) {
		t.Errorf("extract = %s", out)
	}
}

func TestProcessCommand_RejectsFormat(t *testing.T) {
	if _, err := run(t, "process", "--format", "xml", "whatever.txt"); err == nil {
		t.Fatal("expected format error")
	}
}

func TestRouteCommand(t *testing.T) {
	if _, err := run(t, "route", "ai_complete", "http"); err == nil {
		t.Error("http route without endpoint accepted")
	}
	if _, err := run(t, "route", "ai_complete", "carrier-pigeon"); err == nil {
		t.Error("unknown strategy accepted")
	}
	out, err := run(t, "route", "ai_complete", "noop")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ai_complete -> noop") {
		t.Errorf("route = %q", out)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := run(t, "hash-password", "admin", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "admin:$2") {
		t.Errorf("hash = %q", out)
	}
	if _, err := run(t, "hash-password", "a:b", "x"); err == nil {
		t.Error("user with colon accepted")
	}
}
