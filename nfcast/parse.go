// Package nfcast decodes BSE Direct NFCAST market picture packets
// (message types 2020/2021) into structured market records.
//
// Packet layout, fixed-slot mode:
//
//	Header (36 bytes):
//	  [0:4)   leading zeros                 u32 BE (expected, not enforced)
//	  [4:6)   format id == packet length    u16, byte order per profile
//	  [8:10)  message type (2020/2021)      u16 LE
//	  [20:26) hour, minute, second          3 x u16, byte order per profile
//	Record slots of 264 bytes from offset 36, up to 6 per packet.
package nfcast

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	bse "github.com/anv-het/bse-udp"
)

// Decoder parses raw NFCAST datagrams according to a layout profile.
// It is stateless across packets; a zero-value logger disables logging.
type Decoder struct {
	profile LayoutProfile
	log     zerolog.Logger

	// now is the host clock, swappable in tests. Used for the date half of
	// packet timestamps and as fallback for invalid time-of-day fields.
	now func() time.Time
}

// NewDecoder creates a decoder for the given layout profile.
func NewDecoder(profile LayoutProfile, log zerolog.Logger) *Decoder {
	return &Decoder{
		profile: profile,
		log:     log,
		now:     time.Now,
	}
}

// Profile returns the decoder's layout profile.
func (d *Decoder) Profile() LayoutProfile {
	return d.profile
}

// ParseHeader parses the 36-byte packet header.
//
// The leading four bytes should be zero; captured packets occasionally
// violate this, so a mismatch is logged and parsing continues. An
// unsupported message type rejects the whole packet. Out-of-range
// time-of-day fields degrade to the host clock instead of failing.
func (d *Decoder) ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", bse.ErrPacketTooShort, len(data), HeaderSize)
	}

	if leading := binary.BigEndian.Uint32(data[0:4]); leading != 0 {
		d.log.Warn().Uint32("leading", leading).Msg("leading zeros check failed")
	}

	formatID := d.profile.FormatIDOrder.Uint16(data[4:6])

	msgType := binary.LittleEndian.Uint16(data[8:10])
	if msgType != MsgTypeMarketPicture && msgType != MsgTypeMarketPictureComplex {
		return nil, fmt.Errorf("%w: %d", bse.ErrUnsupportedMessageType, msgType)
	}

	hour := d.profile.TimeOrder.Uint16(data[20:22])
	minute := d.profile.TimeOrder.Uint16(data[22:24])
	second := d.profile.TimeOrder.Uint16(data[24:26])

	now := d.now()
	var ts time.Time
	if hour > 23 || minute > 59 || second > 59 {
		d.log.Warn().
			Uint16("hour", hour).Uint16("minute", minute).Uint16("second", second).
			Msg("invalid packet time, falling back to host clock")
		ts = now.Truncate(time.Second)
	} else {
		// The feed transmits time of day only; the date is the host's.
		ts = time.Date(now.Year(), now.Month(), now.Day(),
			int(hour), int(minute), int(second), 0, now.Location())
	}

	return &Header{
		FormatID:   formatID,
		MsgType:    msgType,
		Timestamp:  ts,
		PacketSize: len(data),
	}, nil
}

// ValidateLength performs the authoritative format check: the format ID
// literally encodes the total packet length in bytes.
func (d *Decoder) ValidateLength(h *Header, data []byte) error {
	if int(h.FormatID) != len(data) {
		return fmt.Errorf("%w: format id %d, packet %d bytes", bse.ErrFormatLengthMismatch, h.FormatID, len(data))
	}
	return nil
}

// FrameSlots carves the packet body into fixed-size record slots starting
// at offset 36. Slots that would run past the buffer are dropped; any
// remainder after the last whole slot is framing garbage and ignored.
func (d *Decoder) FrameSlots(data []byte) [][]byte {
	if len(data) <= HeaderSize {
		return nil
	}
	body := len(data) - HeaderSize
	n := body / d.profile.SlotSize
	if rem := body % d.profile.SlotSize; rem != 0 {
		d.log.Debug().Int("remainder", rem).Int("packet", len(data)).
			Msg("trailing bytes after last whole slot")
	}

	slots := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := HeaderSize + i*d.profile.SlotSize
		slots = append(slots, data[start:start+d.profile.SlotSize])
	}
	return slots
}

// minimum slot bytes for the core field run, token through sequence number
const coreFieldsLen = 48

// ParseRecord extracts one instrument's record from a slot.
//
// Slot layout (byte offsets, all little-endian):
//
//	[0:4)   token (0 = empty slot)    u32
//	[4:8)   open                      i32 paise
//	[8:12)  prev close                i32 paise
//	[12:16) high                      i32 paise
//	[16:20) low                       i32 paise
//	[20:24) unidentified              i32
//	[24:28) volume                    i32
//	[28:32) turnover (lakhs)          u32
//	[32:36) lot size                  u32
//	[36:40) ltp                       i32 paise
//	[40:44) unidentified, seen zero   u32
//	[44:48) sequence number           u32
//	[84:88) atp, when slot >= 88      i32 paise
//	[104:264) 5-level depth, when slot >= 264
//
// Returns (nil, nil) for an empty slot. Trailing optional sections absent
// from a short slot are defaulted, not errors; only a slot too short for
// the core fields fails.
func (d *Decoder) ParseRecord(slot []byte) (*MarketRecord, error) {
	return d.parseRecord(slot, newRecord)
}

// parseRecordPooled is ParseRecord backed by the record pool; callers
// own the release.
func (d *Decoder) parseRecordPooled(slot []byte) (*MarketRecord, error) {
	return d.parseRecord(slot, AcquireRecord)
}

func newRecord() *MarketRecord {
	return &MarketRecord{}
}

func (d *Decoder) parseRecord(slot []byte, alloc func() *MarketRecord) (*MarketRecord, error) {
	if len(slot) < 4 {
		return nil, fmt.Errorf("slot too short for token: %d bytes", len(slot))
	}

	token := binary.LittleEndian.Uint32(slot[0:4])
	if token == 0 {
		return nil, nil
	}
	if len(slot) < coreFieldsLen {
		return nil, fmt.Errorf("slot too short for core fields: got %d bytes, need %d", len(slot), coreFieldsLen)
	}

	rec := alloc()
	rec.Token = token
	rec.Open = int32(binary.LittleEndian.Uint32(slot[4:8]))
	rec.PrevClose = int32(binary.LittleEndian.Uint32(slot[8:12]))
	rec.High = int32(binary.LittleEndian.Uint32(slot[12:16]))
	rec.Low = int32(binary.LittleEndian.Uint32(slot[16:20]))
	rec.RawField20 = int32(binary.LittleEndian.Uint32(slot[20:24]))
	rec.Volume = int32(binary.LittleEndian.Uint32(slot[24:28]))
	rec.Turnover = binary.LittleEndian.Uint32(slot[28:32])
	rec.LotSize = binary.LittleEndian.Uint32(slot[32:36])
	rec.LTP = int32(binary.LittleEndian.Uint32(slot[36:40]))
	rec.RawField40 = binary.LittleEndian.Uint32(slot[40:44])
	rec.SeqNo = binary.LittleEndian.Uint32(slot[44:48])

	if len(slot) >= 88 {
		rec.ATP = int32(binary.LittleEndian.Uint32(slot[84:88]))
	}
	if len(slot) >= SlotSize {
		rec.Book = parseDepth(slot)
	}

	return rec, nil
}

// parseDepth parses the interleaved 5-level order book.
//
// Level i occupies a 32-byte block at 104+32i:
// bid price/qty/flag/reserved, then ask price/qty/flag/reserved,
// all i32 little-endian. A level is kept only when both its price and
// quantity are strictly positive; the sides are filtered independently,
// so bids and asks may end up different lengths. Transmitted order is
// trusted as best-to-worst.
func parseDepth(slot []byte) *OrderBook {
	book := &OrderBook{}
	for i := 0; i < depthLevels; i++ {
		off := depthOffset + i*depthBlockLen

		bid := DepthLevel{
			Price: int32(binary.LittleEndian.Uint32(slot[off : off+4])),
			Qty:   int32(binary.LittleEndian.Uint32(slot[off+4 : off+8])),
			Flag:  int32(binary.LittleEndian.Uint32(slot[off+8 : off+12])),
		}
		if bid.Price > 0 && bid.Qty > 0 {
			book.Bids = append(book.Bids, bid)
		}

		ask := DepthLevel{
			Price: int32(binary.LittleEndian.Uint32(slot[off+16 : off+20])),
			Qty:   int32(binary.LittleEndian.Uint32(slot[off+20 : off+24])),
			Flag:  int32(binary.LittleEndian.Uint32(slot[off+24 : off+28])),
		}
		if ask.Price > 0 && ask.Qty > 0 {
			book.Asks = append(book.Asks, ask)
		}
	}
	return book
}

// RecordCounts summarizes the slot outcomes of one packet body.
// A slot is counted exactly once: decoded, empty or errored.
type RecordCounts struct {
	Slots        int
	EmptySlots   int
	RecordErrors int
}

// DecodeBody extracts every record from an already header-validated
// packet. Empty slots are skipped and a record-level failure skips that
// slot and keeps its siblings; both outcomes land in the counts.
func (d *Decoder) DecodeBody(data []byte) ([]*MarketRecord, RecordCounts) {
	if d.profile.Compressed {
		return d.decodeCompressedBody(data)
	}
	return d.decodeSlots(data, d.ParseRecord)
}

func (d *Decoder) decodeSlots(data []byte, parse func([]byte) (*MarketRecord, error)) ([]*MarketRecord, RecordCounts) {
	var counts RecordCounts
	var records []*MarketRecord
	for _, slot := range d.FrameSlots(data) {
		counts.Slots++
		rec, err := parse(slot)
		if err != nil {
			counts.RecordErrors++
			d.log.Debug().Err(err).Msg("skipping record")
			continue
		}
		if rec == nil {
			counts.EmptySlots++
			continue
		}
		records = append(records, rec)
	}
	return records, counts
}

// DecodePacket runs the full header/frame/extract sequence for one
// datagram.
func (d *Decoder) DecodePacket(data []byte) (*Header, []*MarketRecord, error) {
	header, err := d.ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	if err := d.ValidateLength(header, data); err != nil {
		return nil, nil, err
	}
	records, _ := d.DecodeBody(data)
	return header, records, nil
}
