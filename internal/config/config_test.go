package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nfanon.yaml")
	content := `
num_workers: 4
key: operator-passphrase
read_path: /var/flows/in
write_path: /var/flows/out
quiet: true
nats:
  url: nats://localhost:4222
  subject: nfanon.progress
clickhouse:
  host: localhost
  port: 9000
  database: nfanon
  username: default
  password: ""
status:
  listen_addr: 127.0.0.1:8088
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumWorkers != 4 {
		t.Errorf("NumWorkers = %d, want 4", cfg.NumWorkers)
	}
	if cfg.Key != "operator-passphrase" {
		t.Errorf("Key = %q, want %q", cfg.Key, "operator-passphrase")
	}
	if cfg.ReadPath != "/var/flows/in" || cfg.WritePath != "/var/flows/out" {
		t.Errorf("ReadPath/WritePath = %q/%q", cfg.ReadPath, cfg.WritePath)
	}
	if !cfg.Quiet {
		t.Errorf("Quiet = false, want true")
	}
	if cfg.NATS.URL != "nats://localhost:4222" || cfg.NATS.Subject != "nfanon.progress" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
	if cfg.ClickHouse.Host != "localhost" || cfg.ClickHouse.Port != 9000 {
		t.Errorf("ClickHouse = %+v", cfg.ClickHouse)
	}
	if cfg.Status.ListenAddr != "127.0.0.1:8088" {
		t.Errorf("Status.ListenAddr = %q", cfg.Status.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
