package quote

import (
	"github.com/mailru/easyjson/jwriter"
)

// MarshalEasyJSON writes the quote as a single JSON object without
// reflection; the NDJSON sink calls this once per quote per packet.
func (q *Quote) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"token":`)
	w.Uint32(q.Token)
	w.RawString(`,"symbol":`)
	w.String(q.Symbol)
	if q.Ticker != "" {
		w.RawString(`,"ticker":`)
		w.String(q.Ticker)
	}
	if q.Expiry != "" {
		w.RawString(`,"expiry":`)
		w.String(q.Expiry)
	}
	if q.OptionType != "" {
		w.RawString(`,"option_type":`)
		w.String(q.OptionType)
	}
	if q.Strike != 0 {
		w.RawString(`,"strike":`)
		w.Float64(q.Strike)
	}
	w.RawString(`,"timestamp":`)
	w.String(q.Timestamp)

	w.RawString(`,"open":`)
	w.Float64(q.Open)
	w.RawString(`,"high":`)
	w.Float64(q.High)
	w.RawString(`,"low":`)
	w.Float64(q.Low)
	w.RawString(`,"close":`)
	w.Float64(q.Close)
	w.RawString(`,"ltp":`)
	w.Float64(q.LTP)
	w.RawString(`,"prev_close":`)
	w.Float64(q.PrevClose)
	if q.ATP != 0 {
		w.RawString(`,"atp":`)
		w.Float64(q.ATP)
	}

	w.RawString(`,"volume":`)
	w.Int32(q.Volume)
	w.RawString(`,"turnover":`)
	w.Uint32(q.Turnover)
	w.RawString(`,"lot_size":`)
	w.Uint32(q.LotSize)
	w.RawString(`,"seq_no":`)
	w.Uint32(q.SeqNo)

	w.RawString(`,"raw_field_20":`)
	w.Int32(q.RawField20)
	w.RawString(`,"raw_field_40":`)
	w.Uint32(q.RawField40)

	w.RawString(`,"bid_levels":`)
	writeLevels(w, q.BidLevels)
	w.RawString(`,"ask_levels":`)
	writeLevels(w, q.AskLevels)
	w.RawByte('}')
}

func writeLevels(w *jwriter.Writer, lvls []Level) {
	w.RawByte('[')
	for i, lvl := range lvls {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"price":`)
		w.Float64(lvl.Price)
		w.RawString(`,"qty":`)
		w.Int32(lvl.Qty)
		w.RawString(`,"flag":`)
		w.Int32(lvl.Flag)
		w.RawByte('}')
	}
	w.RawByte(']')
}

// MarshalJSON satisfies encoding/json via the easyjson writer.
func (q *Quote) MarshalJSON() ([]byte, error) {
	var w jwriter.Writer
	q.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}
