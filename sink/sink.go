// Package sink persists normalized quotes as day-partitioned NDJSON and
// CSV files, with optional raw-packet capture for protocol analysis.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Stats counts persistence outcomes. I/O errors are counted, never fatal
// to the receive loop.
type Stats struct {
	JSONWrites uint64
	CSVWrites  uint64
	QuotesJSON uint64
	QuotesCSV  uint64
	RawPackets uint64
	IOErrors   uint64
}

// Saver writes quotes to {dir}/processed_json/YYYYMMDD_quotes.json and
// {dir}/processed_csv/YYYYMMDD_quotes.csv in append mode, and optionally
// raw datagrams to {dir}/raw_packets/. Single-writer, like the pipeline.
type Saver struct {
	jsonDir string
	csvDir  string
	rawDir  string

	writeJSON bool
	writeCSV  bool
	rawLimit  int
	rawStored int

	log   zerolog.Logger
	stats Stats
	now   func() time.Time
}

// Option is a functional option for configuring the saver.
type Option func(*Saver)

// WithJSON toggles NDJSON output (default on).
func WithJSON(enabled bool) Option {
	return func(s *Saver) { s.writeJSON = enabled }
}

// WithCSV toggles CSV output (default on).
func WithCSV(enabled bool) Option {
	return func(s *Saver) { s.writeCSV = enabled }
}

// WithRawCapture enables raw-packet capture up to limit packets.
// Zero disables capture.
func WithRawCapture(limit int) Option {
	return func(s *Saver) { s.rawLimit = limit }
}

// WithClock overrides the clock used for file partitioning, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Saver) { s.now = now }
}

// NewSaver creates the output directory tree under dir.
func NewSaver(dir string, log zerolog.Logger, opts ...Option) (*Saver, error) {
	s := &Saver{
		jsonDir:   filepath.Join(dir, "processed_json"),
		csvDir:    filepath.Join(dir, "processed_csv"),
		rawDir:    filepath.Join(dir, "raw_packets"),
		writeJSON: true,
		writeCSV:  true,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, d := range []string{s.jsonDir, s.csvDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory %s: %w", d, err)
		}
	}
	if s.rawLimit > 0 {
		if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory %s: %w", s.rawDir, err)
		}
	}
	return s, nil
}

// dateStr is the partition key for output files.
func (s *Saver) dateStr() string {
	return s.now().Format("20060102")
}

// SaveRawPacket appends one datagram to the capture directory until the
// configured limit is reached. Used for protocol analysis sessions.
func (s *Saver) SaveRawPacket(packet []byte, msgType uint16) {
	if s.rawLimit <= 0 || s.rawStored >= s.rawLimit {
		return
	}
	name := fmt.Sprintf("%s_type%d_packet.bin", s.now().Format("20060102_150405.000000"), msgType)
	path := filepath.Join(s.rawDir, name)
	if err := os.WriteFile(path, packet, 0o644); err != nil {
		s.stats.IOErrors++
		s.log.Error().Err(err).Str("path", path).Msg("raw packet write failed")
		return
	}
	s.rawStored++
	s.stats.RawPackets++
	if s.rawStored == s.rawLimit {
		s.log.Info().Int("limit", s.rawLimit).Msg("raw capture limit reached")
	}
}

// Stats returns a copy of the persistence counters.
func (s *Saver) Stats() Stats {
	return s.stats
}
