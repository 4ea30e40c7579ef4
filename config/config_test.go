package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "HISTORY_LIMIT", "AUTOSAVE_DELAY_MS", "DEFAULT_TIME_SIG", "AUDIO_ENGINE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg := fromEnv()
	if cfg.ListenAddr != "127.0.0.1:8765" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.HistoryLimit != 50 || cfg.AutosaveDelay != 1500*time.Millisecond {
		t.Errorf("history %d autosave %v", cfg.HistoryLimit, cfg.AutosaveDelay)
	}
	if cfg.DefaultTimeSig != [2]int{4, 4} || cfg.AudioEngine != "beep" {
		t.Errorf("time sig %v engine %q", cfg.DefaultTimeSig, cfg.AudioEngine)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_BPM", "96.5")
	t.Setenv("DEFAULT_TIME_SIG", "6/8")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := fromEnv()
	if cfg.DefaultBPM != 96.5 || cfg.DefaultTimeSig != [2]int{6, 8} || !cfg.MinioUseSSL {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("invalid int not ignored: %d", cfg.RedisDB)
	}
}

func TestParseTimeSig(t *testing.T) {
	cases := map[string][2]int{
		"3/4":   {3, 4},
		" 7/8 ": {7, 8},
		"0/4":   {4, 4},
		"4":     {4, 4},
		"a/b":   {4, 4},
	}
	for in, want := range cases {
		if got := parseTimeSig(in); got != want {
			t.Errorf("parseTimeSig(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWatchReloads(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// 等待监听建立后再写入
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-changes:
			if c.LogLevel != "debug" {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("watch: %v", err)
			}
			return
		case <-tick.C:
			_ = os.WriteFile(path, []byte("LOG_LEVEL=debug\n"), 0o644)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
