package configwatcher

import (
	"context"
	"online_exam_backend/internal/config"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchConfigReloads(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	write := func(port string) {
		body := "server:\n  port: \"" + port + "\"\n  mode: test\nstorage:\n  type: local\n  local_path: " + filepath.Join(dir, "uploads") + "\n"
		if err := os.WriteFile(file, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("8080")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 4)
	if err := WatchConfig(ctx, file, func(cfg *config.Config) { reloaded <- cfg }); err != nil {
		t.Fatal(err)
	}

	write("9090")

	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != "9090" {
			t.Errorf("port = %q, want 9090", cfg.Server.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config not reloaded")
	}
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), func(*config.Config) {})
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
