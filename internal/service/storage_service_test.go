package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"online_exam_backend/internal/config"
)

func TestLocalStorageStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: root}}
	ctx := context.Background()

	if err := p.Put(ctx, "../../escape.csv", []byte("a,b\n"), "text/csv"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.csv")); err != nil {
		t.Fatalf("file not written under root: %v", err)
	}

	data, err := p.Get(ctx, "escape.csv")
	if err != nil || string(data) != "a,b\n" {
		t.Fatalf("Get = %q, %v", data, err)
	}
	if _, err := p.Get(ctx, "missing.csv"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("missing object err = %v", err)
	}
}

func TestNewStorageServiceFallsBackToLocal(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()}}
	if _, ok := NewStorageService(cfg).Provider.(*LocalStorageProvider); !ok {
		t.Fatal("local storage expected")
	}

	// 未知类型也退回本地
	cfg.Storage.Type = "ftp"
	if _, ok := NewStorageService(cfg).Provider.(*LocalStorageProvider); !ok {
		t.Fatal("unknown type should fall back to local")
	}
}
