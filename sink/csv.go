package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anv-het/bse-udp/quote"
)

var csvHeader = []string{
	"token", "symbol", "timestamp",
	"open", "high", "low", "close", "ltp", "volume", "prev_close",
	"bid_prices", "bid_qtys", "bid_flags",
	"ask_prices", "ask_qtys", "ask_flags",
}

// saveCSV appends quotes to the day's CSV file, writing the header only
// when the file is created. Best-5 levels are flattened into
// comma-joined price/qty/flag columns.
func (s *Saver) saveCSV(quotes []*quote.Quote) bool {
	path := filepath.Join(s.csvDir, s.dateStr()+"_quotes.csv")

	info, statErr := os.Stat(path)
	needHeader := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.stats.IOErrors++
		s.log.Error().Err(err).Str("path", path).Msg("opening CSV file failed")
		return false
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeader); err != nil {
			s.stats.IOErrors++
			s.log.Error().Err(err).Msg("writing CSV header failed")
			return false
		}
	}

	for _, q := range quotes {
		if err := w.Write(flattenQuote(q)); err != nil {
			s.stats.IOErrors++
			s.log.Error().Err(err).Uint32("token", q.Token).Msg("writing CSV row failed")
			return false
		}
		s.stats.QuotesCSV++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		s.stats.IOErrors++
		s.log.Error().Err(err).Str("path", path).Msg("flushing CSV failed")
		return false
	}

	s.stats.CSVWrites++
	return true
}

func flattenQuote(q *quote.Quote) []string {
	bidPrices, bidQtys, bidFlags := joinLevels(q.BidLevels)
	askPrices, askQtys, askFlags := joinLevels(q.AskLevels)

	return []string{
		strconv.FormatUint(uint64(q.Token), 10),
		q.Symbol,
		q.Timestamp,
		formatRupees(q.Open),
		formatRupees(q.High),
		formatRupees(q.Low),
		formatRupees(q.Close),
		formatRupees(q.LTP),
		strconv.FormatInt(int64(q.Volume), 10),
		formatRupees(q.PrevClose),
		bidPrices, bidQtys, bidFlags,
		askPrices, askQtys, askFlags,
	}
}

func joinLevels(lvls []quote.Level) (prices, qtys, flags string) {
	if len(lvls) == 0 {
		return "", "", ""
	}
	p := make([]string, len(lvls))
	q := make([]string, len(lvls))
	f := make([]string, len(lvls))
	for i, lvl := range lvls {
		p[i] = formatRupees(lvl.Price)
		q[i] = strconv.FormatInt(int64(lvl.Qty), 10)
		f[i] = strconv.FormatInt(int64(lvl.Flag), 10)
	}
	return strings.Join(p, ","), strings.Join(q, ","), strings.Join(f, ",")
}

// formatRupees prints a paise-exact rupee amount with two decimals.
func formatRupees(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
