package nfcast

import (
	"encoding/binary"
)

// Differential decompression for the compressed feed mode.
//
// Fields arrive as 2-byte big-endian signed deltas against a running base
// value, with two escape codes: 32767 means the true value follows as a
// 4-byte big-endian integer, and +/-32766 terminates a variable-length
// level list. Open/high/low are deltas against the record's LTP; depth
// levels cascade, each decoded level becoming the base for the next.

// DecodeField decodes one differentially encoded field at off.
// Returns ok=false on an end-of-list marker or when the buffer is
// exhausted; in both cases decoding of the current list stops.
func DecodeField(buf []byte, off int, base int64) (val int64, newOff int, ok bool) {
	if off+2 > len(buf) {
		return 0, off, false
	}

	diff := int16(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2

	switch {
	case diff == diffVerbatim:
		// Value too large for a delta, sent verbatim.
		if off+4 > len(buf) {
			return 0, off, false
		}
		v := int64(binary.BigEndian.Uint32(buf[off : off+4]))
		return v, off + 4, true
	case diff == diffEndBuy || diff == diffEndSell:
		return 0, off, false
	default:
		return base + int64(diff), off, true
	}
}

// decodeDepthLevel decodes one price/qty/flag triple with cascading bases.
func decodeDepthLevel(buf []byte, off int, basePrice, baseQty int64) (lvl DepthLevel, newOff int, ok bool) {
	price, off, ok := DecodeField(buf, off, basePrice)
	if !ok {
		return DepthLevel{}, off, false
	}
	qty, off, ok := DecodeField(buf, off, baseQty)
	if !ok {
		return DepthLevel{}, off, false
	}
	// Order-count field, base 0. Absence is tolerated.
	flag, off, ok := DecodeField(buf, off, 0)
	if !ok {
		flag = 0
	}
	return DepthLevel{Price: int32(price), Qty: int32(qty), Flag: int32(flag)}, off, true
}

// Compressed-mode record preamble, little-endian like the fixed slots:
//
//	[0:4)   token (0 = no further records)
//	[4:8)   ltp, base for price deltas     i32 paise
//	[8:12)  ltq, base for quantity deltas  i32
//	[12:16) prev close                     i32 paise
//	[16:20) volume                         i32
//
// The differential stream follows the preamble: open, high, low against
// the LTP base, then up to 5 bid levels and up to 5 ask levels, each side
// closed by its end marker.
const compressedPreambleLen = 20

// DecodeCompressedRecord decodes one variable-length record starting at
// off. Returns the record (nil for an empty slot), the offset just past
// the bytes consumed, and whether a record slot was present at all.
// Decoding fails closed: once the stream runs out, the fields decoded so
// far stand and missing OHLC defaults to the LTP base.
func (d *Decoder) DecodeCompressedRecord(packet []byte, off int) (rec *MarketRecord, end int, present bool) {
	if off+compressedPreambleLen > len(packet) {
		return nil, off, false
	}

	token := binary.LittleEndian.Uint32(packet[off : off+4])
	if token == 0 {
		return nil, off + compressedPreambleLen, false
	}

	ltp := int64(int32(binary.LittleEndian.Uint32(packet[off+4 : off+8])))
	ltq := int64(int32(binary.LittleEndian.Uint32(packet[off+8 : off+12])))

	rec = &MarketRecord{
		Token:     token,
		LTP:       int32(ltp),
		PrevClose: int32(binary.LittleEndian.Uint32(packet[off+12 : off+16])),
		Volume:    int32(binary.LittleEndian.Uint32(packet[off+16 : off+20])),
	}

	pos := off + compressedPreambleLen

	open, pos, ok := DecodeField(packet, pos, ltp)
	if !ok {
		open = ltp
	}
	high, pos, ok := DecodeField(packet, pos, ltp)
	if !ok {
		high = ltp
	}
	low, pos, ok := DecodeField(packet, pos, ltp)
	if !ok {
		low = ltp
	}
	rec.Open = int32(open)
	rec.High = int32(high)
	rec.Low = int32(low)

	book := &OrderBook{}

	basePrice, baseQty := ltp, ltq
	for i := 0; i < depthLevels; i++ {
		lvl, next, ok := decodeDepthLevel(packet, pos, basePrice, baseQty)
		pos = next
		if !ok {
			break
		}
		if lvl.Price > 0 && lvl.Qty > 0 {
			book.Bids = append(book.Bids, lvl)
		}
		basePrice, baseQty = int64(lvl.Price), int64(lvl.Qty)
	}

	basePrice, baseQty = ltp, ltq
	for i := 0; i < depthLevels; i++ {
		lvl, next, ok := decodeDepthLevel(packet, pos, basePrice, baseQty)
		pos = next
		if !ok {
			break
		}
		if lvl.Price > 0 && lvl.Qty > 0 {
			book.Asks = append(book.Asks, lvl)
		}
		basePrice, baseQty = int64(lvl.Price), int64(lvl.Qty)
	}

	if len(book.Bids) > 0 || len(book.Asks) > 0 {
		rec.Book = book
	}
	return rec, pos, true
}

// decodeCompressedBody walks variable-length records sequentially from
// offset 36, positioning each record by the bytes its predecessor
// actually consumed. A zero-token preamble is an empty slot: its 20
// bytes are skipped and the walk continues. A tail too short for a
// preamble ends the walk as a decompress error.
func (d *Decoder) decodeCompressedBody(packet []byte) ([]*MarketRecord, RecordCounts) {
	var counts RecordCounts
	var records []*MarketRecord
	pos := HeaderSize
	for i := 0; i < MaxSlots && pos < len(packet); i++ {
		rec, next, present := d.DecodeCompressedRecord(packet, pos)
		if !present {
			if next == pos {
				counts.RecordErrors++
				break
			}
			counts.Slots++
			counts.EmptySlots++
			pos = next
			continue
		}
		counts.Slots++
		pos = next
		records = append(records, rec)
	}
	return records, counts
}
