package quote

import (
	"github.com/rs/zerolog"

	"github.com/anv-het/bse-udp/nfcast"
	"github.com/anv-het/bse-udp/symbols"
)

// CollectorStats counts collection outcomes. Single-writer under the
// pipeline's one-loop model; aggregate externally if ever parallelized.
type CollectorStats struct {
	QuotesCollected  uint64
	UnknownTokens    uint64
	ValidationErrors uint64
}

// Collector validates decoded records and assembles normalized quotes
// with symbol resolution. Records that fail the gate (ltp must be
// positive, volume non-negative) are counted and dropped, never retried.
type Collector struct {
	master *symbols.Master
	log    zerolog.Logger
	stats  CollectorStats
}

// NewCollector creates a collector over a loaded token master.
func NewCollector(master *symbols.Master, log zerolog.Logger) *Collector {
	if master == nil {
		master = symbols.Empty()
	}
	return &Collector{master: master, log: log}
}

// Collect builds quotes for every record that passes validation.
// Unknown tokens still produce quotes under the UNKNOWN symbol.
func (c *Collector) Collect(header *nfcast.Header, records []*nfcast.MarketRecord) []*Quote {
	if len(records) == 0 {
		return nil
	}

	quotes := make([]*Quote, 0, len(records))
	for _, rec := range records {
		if rec.LTP <= 0 || rec.Volume < 0 {
			c.stats.ValidationErrors++
			c.log.Debug().
				Uint32("token", rec.Token).
				Int32("ltp", rec.LTP).
				Int32("volume", rec.Volume).
				Msg("record failed validation gate")
			continue
		}

		contract, known := c.master.Resolve(rec.Token)
		if !known {
			c.stats.UnknownTokens++
		}

		quotes = append(quotes, Normalize(rec, header, contract))
		c.stats.QuotesCollected++
	}
	return quotes
}

// Stats returns a copy of the collection counters.
func (c *Collector) Stats() CollectorStats {
	return c.stats
}
