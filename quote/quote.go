// Package quote turns decoded market records into normalized,
// symbol-resolved quotes in rupee terms.
package quote

import (
	"time"

	"github.com/anv-het/bse-udp/nfcast"
	"github.com/anv-het/bse-udp/symbols"
)

// TimestampLayout is the quote timestamp format: host date + packet time.
const TimestampLayout = "2006-01-02 15:04:05"

// Level is one order-book level in display units.
type Level struct {
	Price float64 `json:"price"` // rupees
	Qty   int32   `json:"qty"`
	Flag  int32   `json:"flag"`
}

// Quote is the externally visible output unit. Immutable after
// construction; owned by the sink once handed over.
type Quote struct {
	Token      uint32  `json:"token"`
	Symbol     string  `json:"symbol"`
	Ticker     string  `json:"ticker,omitempty"`
	Expiry     string  `json:"expiry,omitempty"`
	OptionType string  `json:"option_type,omitempty"`
	Strike     float64 `json:"strike,omitempty"` // rupees
	Timestamp  string  `json:"timestamp"`

	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"` // intraday close tracks LTP
	LTP       float64 `json:"ltp"`
	PrevClose float64 `json:"prev_close"`
	ATP       float64 `json:"atp,omitempty"`

	Volume   int32  `json:"volume"`
	Turnover uint32 `json:"turnover"` // lakhs, as transmitted
	LotSize  uint32 `json:"lot_size"`
	SeqNo    uint32 `json:"seq_no"`

	RawField20 int32  `json:"raw_field_20"`
	RawField40 uint32 `json:"raw_field_40"`

	BidLevels []Level `json:"bid_levels"`
	AskLevels []Level `json:"ask_levels"`
}

// rupees converts an integer paise amount at the output boundary.
// All arithmetic upstream stays integral, so converting the same record
// twice always yields bit-identical values.
func rupees(paise int32) float64 {
	return float64(paise) / 100
}

// levels converts one side of a decoded book to display units.
func levels(in []nfcast.DepthLevel) []Level {
	if len(in) == 0 {
		return []Level{}
	}
	out := make([]Level, len(in))
	for i, lvl := range in {
		out[i] = Level{Price: rupees(lvl.Price), Qty: lvl.Qty, Flag: lvl.Flag}
	}
	return out
}

// Normalize builds a quote from a decoded record and its packet header,
// attaching contract metadata. The contract may be the zero value for
// unknown tokens; the symbol then falls back to the UNKNOWN placeholder.
func Normalize(rec *nfcast.MarketRecord, header *nfcast.Header, contract symbols.Contract) *Quote {
	q := &Quote{
		Token:      rec.Token,
		Symbol:     contract.TradingSymbol(),
		Ticker:     contract.Ticker,
		Expiry:     contract.Expiry,
		OptionType: contract.OptionType,
		Timestamp:  header.Timestamp.Format(TimestampLayout),

		Open:      rupees(rec.Open),
		High:      rupees(rec.High),
		Low:       rupees(rec.Low),
		Close:     rupees(rec.LTP),
		LTP:       rupees(rec.LTP),
		PrevClose: rupees(rec.PrevClose),
		ATP:       rupees(rec.ATP),

		Volume:   rec.Volume,
		Turnover: rec.Turnover,
		LotSize:  rec.LotSize,
		SeqNo:    rec.SeqNo,

		RawField20: rec.RawField20,
		RawField40: rec.RawField40,

		BidLevels: []Level{},
		AskLevels: []Level{},
	}
	if contract.Strike != 0 {
		q.Strike = float64(contract.Strike) / 100
	}
	if rec.Book != nil {
		q.BidLevels = levels(rec.Book.Bids)
		q.AskLevels = levels(rec.Book.Asks)
	}
	return q
}

// Time parses the quote timestamp back into a time.Time, mainly for tests
// and downstream consumers that want a real clock value.
func (q *Quote) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, q.Timestamp, loc)
}
