package sink

import (
	"os"
	"path/filepath"

	"github.com/mailru/easyjson/jwriter"

	"github.com/anv-het/bse-udp/quote"
)

// saveJSON appends quotes to the day's NDJSON file, one JSON object per
// line. Line-delimited output streams cleanly and survives a crash with
// at most one torn line.
func (s *Saver) saveJSON(quotes []*quote.Quote) bool {
	path := filepath.Join(s.jsonDir, s.dateStr()+"_quotes.json")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.stats.IOErrors++
		s.log.Error().Err(err).Str("path", path).Msg("opening NDJSON file failed")
		return false
	}
	defer f.Close()

	var w jwriter.Writer
	for _, q := range quotes {
		q.MarshalEasyJSON(&w)
		w.RawByte('\n')
	}
	if w.Error != nil {
		s.stats.IOErrors++
		s.log.Error().Err(w.Error).Msg("encoding quotes failed")
		return false
	}
	if _, err := w.DumpTo(f); err != nil {
		s.stats.IOErrors++
		s.log.Error().Err(err).Str("path", path).Msg("writing NDJSON failed")
		return false
	}

	s.stats.JSONWrites++
	s.stats.QuotesJSON += uint64(len(quotes))
	return true
}

// Save persists quotes to every enabled format. Returns false if any
// enabled format failed; partial output is acceptable by design.
func (s *Saver) Save(quotes []*quote.Quote) bool {
	if len(quotes) == 0 {
		return true
	}
	ok := true
	if s.writeJSON && !s.saveJSON(quotes) {
		ok = false
	}
	if s.writeCSV && !s.saveCSV(quotes) {
		ok = false
	}
	return ok
}
