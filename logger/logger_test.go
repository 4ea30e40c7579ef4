package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[LogLevel]string{
		DebugLevel: "debug",
		WarnLevel:  "warn",
		ErrorLevel: "error",
		"verbose":  "info",
		"":         "info",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(InfoLevel)
	SetLevel(DebugLevel)
	if got := GetLevel(); got != "debug" {
		t.Errorf("level = %s", got)
	}
	SetLevel(ErrorLevel)
	if got := GetLevel(); got != "error" {
		t.Errorf("level = %s", got)
	}
}

func TestNewCore(t *testing.T) {
	core, err := newCore(Config{DisableConsole: true})
	if err != nil {
		t.Fatal(err)
	}
	if core.Enabled(parseLevel(ErrorLevel)) {
		t.Error("console disabled without file should discard everything")
	}

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	core, err = newCore(Config{OutputPath: path, MaxSize: 1, DisableConsole: true})
	if err != nil {
		t.Fatal(err)
	}
	if !core.Enabled(parseLevel(ErrorLevel)) {
		t.Error("file core should accept errors")
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("log dir not created: %v", err)
	}
}

func TestFieldHelpers(t *testing.T) {
	if f := ProjectID("p1"); f.Key != "projectId" || f.String != "p1" {
		t.Errorf("ProjectID = %+v", f)
	}
	Info("before init is a no-op", Seconds("position", 1.23456))
}
