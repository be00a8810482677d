package nfcast

import (
	"time"
)

// Message types carried by the NFCAST market picture stream
const (
	MsgTypeMarketPicture        uint16 = 2020 // 0x07E4 little-endian on the wire
	MsgTypeMarketPictureComplex uint16 = 2021 // 0x07E5 little-endian on the wire
)

// Wire layout constants for the fixed-slot mode
const (
	HeaderSize = 36  // bytes
	SlotSize   = 264 // bytes per record slot
	MaxSlots   = 6   // instruments per packet

	depthOffset   = 104 // first depth block within a slot
	depthLevels   = 5
	depthBlockLen = 32 // bid(16) + ask(16) per level
)

// Differential-compression escape codes (manual pages 48-55)
const (
	diffVerbatim = 32767  // next 4 bytes carry the literal value
	diffEndBuy   = 32766  // end of buy-side level list
	diffEndSell  = -32766 // end of sell-side level list
)

// Header is the decoded 36-byte packet header.
// Timestamp combines the packet's HH:MM:SS with the host's current date;
// the feed does not transmit a date.
type Header struct {
	FormatID   uint16 // encodes total packet length in bytes
	MsgType    uint16 // 2020 or 2021
	Timestamp  time.Time
	PacketSize int
}

// DepthLevel is one price level of the 5-deep order book.
// Price stays in paise; conversion to rupees happens at quote assembly.
type DepthLevel struct {
	Price int32 // paise
	Qty   int32
	Flag  int32
}

// OrderBook holds up to 5 bid and 5 ask levels, best first as transmitted.
// Levels whose price or quantity is not strictly positive are dropped, so
// the two sides may have different lengths.
type OrderBook struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// BestBid returns the top bid level, if any.
func (ob *OrderBook) BestBid() (DepthLevel, bool) {
	if ob == nil || len(ob.Bids) == 0 {
		return DepthLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (ob *OrderBook) BestAsk() (DepthLevel, bool) {
	if ob == nil || len(ob.Asks) == 0 {
		return DepthLevel{}, false
	}
	return ob.Asks[0], true
}

// MarketRecord is one instrument's record decoded from a slot.
// All price fields are paise. RawField20 and RawField40 are carried
// through undecoded; their meaning is not yet established from captures.
type MarketRecord struct {
	Token     uint32
	Open      int32 // paise
	PrevClose int32 // paise
	High      int32 // paise
	Low       int32 // paise
	LTP       int32 // paise
	ATP       int32 // paise, 0 when the slot is too short to carry it
	Volume    int32
	Turnover  uint32 // lakhs, scaling owned by the consumer
	LotSize   uint32
	SeqNo     uint32 // per-instrument, gap detection is the caller's job

	RawField20 int32  // slot offset 20, unidentified
	RawField40 uint32 // slot offset 40, observed always zero

	Book *OrderBook // nil when the slot carries no depth section
}

// BestBidPrice returns the top-of-book bid in paise, 0 without a book.
func (r *MarketRecord) BestBidPrice() int32 {
	if lvl, ok := r.Book.BestBid(); ok {
		return lvl.Price
	}
	return 0
}

// BestAskPrice returns the top-of-book ask in paise, 0 without a book.
// The wire format has no standalone ask field; it only exists via depth.
func (r *MarketRecord) BestAskPrice() int32 {
	if lvl, ok := r.Book.BestAsk(); ok {
		return lvl.Price
	}
	return 0
}
