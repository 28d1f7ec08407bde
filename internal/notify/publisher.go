// Package notify publishes per-file progress events to NATS, mirroring the
// connect/publish/drain lifecycle of the teacher's probe publisher. Wiring
// a Publisher is entirely optional: a nil *Publisher is a documented no-op,
// and the controller never blocks or fails a run on a publish error.
package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// FileEvent is the JSON payload published once per completed input file.
type FileEvent struct {
	File           string `json:"file"`
	Blocks         uint64 `json:"blocks"`
	Records        uint64 `json:"records"`
	Anonymized     uint64 `json:"anonymized"`
	DurationMillis int64  `json:"duration_ms"`
}

// Publisher publishes FileEvents to one NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to url and prepares to publish on subject.
func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Printf("nfanon: connected to NATS at %s", url)
	return &Publisher{nc: nc, subject: subject}, nil
}

// PublishFileDone publishes one FileEvent. Failures are logged, never
// returned as fatal: progress notification is ambient, not core.
func (p *Publisher) PublishFileDone(path string, blocks, records, anonymized uint64, dur time.Duration) {
	if p == nil {
		return
	}
	evt := FileEvent{
		File:           path,
		Blocks:         blocks,
		Records:        records,
		Anonymized:     anonymized,
		DurationMillis: dur.Milliseconds(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("nfanon: notify: marshaling event for %s: %v", path, err)
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		log.Printf("nfanon: notify: publishing event for %s: %v", path, err)
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
}
