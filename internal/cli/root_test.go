package cli

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "qcmanager version") {
		t.Errorf("output = %q", out)
	}
}

func TestStagesCommand(t *testing.T) {
	out, err := execute(t, "stages")
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	for _, name := range []string{"search", "download", "template"} {
		if !strings.Contains(out, name) {
			t.Errorf("stage %s not listed in %q", name, out)
		}
	}
}

func TestCleanupRequiresTarget(t *testing.T) {
	if _, err := execute(t, "cleanup"); err == nil {
		t.Error("cleanup without --job or --all should fail")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
