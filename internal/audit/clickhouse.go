// Package audit persists a per-file summary of each anonymization run to
// ClickHouse, mirroring the connect/create-table/batch-insert shape of the
// teacher's exact-aggregator ClickHouse writer. Wiring a Writer is entirely
// optional: a nil *Writer is a documented no-op.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS nfanon_runs (
    File               String,
    Blocks             UInt64,
    Records            UInt64,
    AnonymizedRecords  UInt64,
    StartedAt          DateTime,
    FinishedAt         DateTime
) ENGINE = MergeTree()
ORDER BY (File, StartedAt);
`

// Config carries the connection settings for the audit sink.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Writer inserts one row per processed file into ClickHouse.
type Writer struct {
	conn driver.Conn
}

// NewWriter connects to ClickHouse and ensures the audit table exists.
func NewWriter(cfg Config) (*Writer, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("audit: connecting to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("audit: pinging clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("audit: creating table: %w", err)
	}
	log.Println("nfanon: audit: connected to ClickHouse, nfanon_runs table ready")
	return &Writer{conn: conn}, nil
}

// RecordFileDone inserts one audit row. Failures are logged, never
// returned as fatal: the audit trail is ambient, not core.
func (w *Writer) RecordFileDone(path string, blocks, records, anonymized uint64, started, finished time.Time) {
	if w == nil {
		return
	}
	err := w.conn.Exec(context.Background(),
		"INSERT INTO nfanon_runs (File, Blocks, Records, AnonymizedRecords, StartedAt, FinishedAt) VALUES (?, ?, ?, ?, ?, ?)",
		path, blocks, records, anonymized, started, finished,
	)
	if err != nil {
		log.Printf("nfanon: audit: inserting row for %s: %v", path, err)
	}
}

// Close releases the ClickHouse connection.
func (w *Writer) Close() {
	if w == nil || w.conn == nil {
		return
	}
	w.conn.Close()
}
