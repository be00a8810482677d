package quote

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anv-het/bse-udp/nfcast"
	"github.com/anv-het/bse-udp/symbols"
)

var testHeader = &nfcast.Header{
	FormatID:   300,
	MsgType:    nfcast.MsgTypeMarketPicture,
	Timestamp:  time.Date(2026, 8, 31, 10, 30, 15, 0, time.UTC),
	PacketSize: 300,
}

func testRecord(token uint32) *nfcast.MarketRecord {
	return &nfcast.MarketRecord{
		Token:     token,
		Open:      8380000,
		PrevClose: 8375000,
		High:      8390000,
		Low:       8370000,
		LTP:       8384700,
		ATP:       8382000,
		Volume:    125000,
		Turnover:  42,
		LotSize:   20,
		SeqNo:     900001,
		Book: &nfcast.OrderBook{
			Bids: []nfcast.DepthLevel{{Price: 8384000, Qty: 500, Flag: 3}},
			Asks: []nfcast.DepthLevel{{Price: 8385000, Qty: 400, Flag: 1}},
		},
	}
}

func TestNormalize_PaiseToRupees(t *testing.T) {
	contract := symbols.Contract{
		Ticker: "SENSEX", Expiry: "25-SEP-2026", OptionType: "CE", Strike: 8270000,
	}

	q := Normalize(testRecord(861384), testHeader, contract)

	assert.Equal(t, uint32(861384), q.Token)
	assert.Equal(t, "SENSEX25SEP2026_82700CE", q.Symbol)
	assert.Equal(t, "2026-08-31 10:30:15", q.Timestamp)

	assert.Equal(t, 83847.00, q.LTP)
	assert.Equal(t, 83847.00, q.Close) // Close tracks LTP intraday
	assert.Equal(t, 83800.00, q.Open)
	assert.Equal(t, 83900.00, q.High)
	assert.Equal(t, 83700.00, q.Low)
	assert.Equal(t, 83750.00, q.PrevClose)
	assert.Equal(t, 83820.00, q.ATP)
	assert.Equal(t, 82700.00, q.Strike)

	// Volume and lot size stay integral
	assert.Equal(t, int32(125000), q.Volume)
	assert.Equal(t, uint32(20), q.LotSize)

	require.Len(t, q.BidLevels, 1)
	assert.Equal(t, 83840.00, q.BidLevels[0].Price)
	assert.Equal(t, int32(500), q.BidLevels[0].Qty)
	require.Len(t, q.AskLevels, 1)
	assert.Equal(t, 83850.00, q.AskLevels[0].Price)
}

func TestNormalize_Idempotent(t *testing.T) {
	rec := testRecord(861384)
	contract := symbols.Contract{Ticker: "SENSEX", Expiry: "25-SEP-2026"}

	a := Normalize(rec, testHeader, contract)
	b := Normalize(rec, testHeader, contract)
	assert.Equal(t, a, b)
}

func TestNormalize_NoBook(t *testing.T) {
	rec := testRecord(861384)
	rec.Book = nil

	q := Normalize(rec, testHeader, symbols.Contract{})
	assert.NotNil(t, q.BidLevels)
	assert.NotNil(t, q.AskLevels)
	assert.Empty(t, q.BidLevels)
	assert.Empty(t, q.AskLevels)
}

func TestNormalize_UnknownContract(t *testing.T) {
	q := Normalize(testRecord(999999), testHeader, symbols.Contract{})
	assert.Equal(t, symbols.UnknownSymbol, q.Symbol)
	assert.Empty(t, q.Ticker)
	assert.Zero(t, q.Strike)
}

func TestCollect_ValidationGate(t *testing.T) {
	c := NewCollector(symbols.Empty(), zerolog.Nop())

	good := testRecord(861384)
	zeroLTP := testRecord(861385)
	zeroLTP.LTP = 0
	negVolume := testRecord(861386)
	negVolume.Volume = -1

	quotes := c.Collect(testHeader, []*nfcast.MarketRecord{good, zeroLTP, negVolume})
	require.Len(t, quotes, 1)
	assert.Equal(t, uint32(861384), quotes[0].Token)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.QuotesCollected)
	assert.Equal(t, uint64(2), stats.ValidationErrors)
}

func TestCollect_UnknownTokensStillEmit(t *testing.T) {
	c := NewCollector(symbols.Empty(), zerolog.Nop())

	quotes := c.Collect(testHeader, []*nfcast.MarketRecord{testRecord(861384)})
	require.Len(t, quotes, 1)
	assert.Equal(t, symbols.UnknownSymbol, quotes[0].Symbol)
	assert.Equal(t, uint64(1), c.Stats().UnknownTokens)
}

func TestCollect_NilMaster(t *testing.T) {
	c := NewCollector(nil, zerolog.Nop())

	quotes := c.Collect(testHeader, []*nfcast.MarketRecord{testRecord(861384)})
	require.Len(t, quotes, 1)
	assert.Equal(t, symbols.UnknownSymbol, quotes[0].Symbol)
}

func TestCollect_EmptyInput(t *testing.T) {
	c := NewCollector(symbols.Empty(), zerolog.Nop())
	assert.Nil(t, c.Collect(testHeader, nil))
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	contract := symbols.Contract{
		Ticker: "SENSEX", Expiry: "25-SEP-2026", OptionType: "CE", Strike: 8270000,
	}
	q := Normalize(testRecord(861384), testHeader, contract)

	raw, err := q.MarshalJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, float64(861384), decoded["token"])
	assert.Equal(t, "SENSEX25SEP2026_82700CE", decoded["symbol"])
	assert.Equal(t, 83847.00, decoded["ltp"])
	assert.Equal(t, "2026-08-31 10:30:15", decoded["timestamp"])

	bids, ok := decoded["bid_levels"].([]interface{})
	require.True(t, ok)
	require.Len(t, bids, 1)
	lvl := bids[0].(map[string]interface{})
	assert.Equal(t, 83840.00, lvl["price"])
	assert.Equal(t, float64(500), lvl["qty"])
}

func TestMarshalJSON_OmitsEmptyContractFields(t *testing.T) {
	q := Normalize(testRecord(999999), testHeader, symbols.Contract{})

	raw, err := q.MarshalJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	_, hasTicker := decoded["ticker"]
	_, hasStrike := decoded["strike"]
	assert.False(t, hasTicker)
	assert.False(t, hasStrike)
	assert.Equal(t, symbols.UnknownSymbol, decoded["symbol"])
}

func TestQuoteTime_RoundTrip(t *testing.T) {
	q := Normalize(testRecord(861384), testHeader, symbols.Contract{})

	ts, err := q.Time(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, testHeader.Timestamp, ts)
}
