package nfcast

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bse "github.com/anv-het/bse-udp"
)

// fixedTime pins the decoder's host clock for deterministic timestamps.
var fixedTime = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

func testDecoder() *Decoder {
	d := NewDecoder(FixedSlotProfile(), zerolog.Nop())
	d.now = func() time.Time { return fixedTime }
	return d
}

// slotSpec describes one populated record slot for packet building.
type slotSpec struct {
	token     uint32
	open      int32
	prevClose int32
	high      int32
	low       int32
	volume    int32
	ltp       int32
	atp       int32
	seqNo     uint32
	bids      []DepthLevel
	asks      []DepthLevel
}

// buildPacket assembles a valid fixed-slot packet: 36-byte header plus
// one 264-byte slot per slotSpec. A nil entry leaves its slot zeroed.
func buildPacket(hour, minute, second uint16, msgType uint16, specs ...*slotSpec) []byte {
	data := make([]byte, HeaderSize+len(specs)*SlotSize)
	binary.LittleEndian.PutUint16(data[4:6], uint16(len(data)))
	binary.LittleEndian.PutUint16(data[8:10], msgType)
	binary.LittleEndian.PutUint16(data[20:22], hour)
	binary.LittleEndian.PutUint16(data[22:24], minute)
	binary.LittleEndian.PutUint16(data[24:26], second)

	for i, spec := range specs {
		if spec == nil {
			continue
		}
		off := HeaderSize + i*SlotSize
		binary.LittleEndian.PutUint32(data[off:off+4], spec.token)
		binary.LittleEndian.PutUint32(data[off+4:off+8], uint32(spec.open))
		binary.LittleEndian.PutUint32(data[off+8:off+12], uint32(spec.prevClose))
		binary.LittleEndian.PutUint32(data[off+12:off+16], uint32(spec.high))
		binary.LittleEndian.PutUint32(data[off+16:off+20], uint32(spec.low))
		binary.LittleEndian.PutUint32(data[off+24:off+28], uint32(spec.volume))
		binary.LittleEndian.PutUint32(data[off+36:off+40], uint32(spec.ltp))
		binary.LittleEndian.PutUint32(data[off+44:off+48], spec.seqNo)
		binary.LittleEndian.PutUint32(data[off+84:off+88], uint32(spec.atp))

		for lvl, b := range spec.bids {
			d := off + depthOffset + lvl*depthBlockLen
			binary.LittleEndian.PutUint32(data[d:d+4], uint32(b.Price))
			binary.LittleEndian.PutUint32(data[d+4:d+8], uint32(b.Qty))
			binary.LittleEndian.PutUint32(data[d+8:d+12], uint32(b.Flag))
		}
		for lvl, a := range spec.asks {
			d := off + depthOffset + lvl*depthBlockLen + 16
			binary.LittleEndian.PutUint32(data[d:d+4], uint32(a.Price))
			binary.LittleEndian.PutUint32(data[d+4:d+8], uint32(a.Qty))
			binary.LittleEndian.PutUint32(data[d+8:d+12], uint32(a.Flag))
		}
	}
	return data
}

func defaultSpec(token uint32) *slotSpec {
	return &slotSpec{
		token:     token,
		open:      8380000,
		prevClose: 8375000,
		high:      8390000,
		low:       8370000,
		volume:    125000,
		ltp:       8384700,
		atp:       8382000,
		seqNo:     900001,
	}
}

func TestParseHeader_Basic(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, defaultSpec(861384))

	h, err := d.ParseHeader(packet)
	require.NoError(t, err)

	assert.Equal(t, uint16(300), h.FormatID)
	assert.Equal(t, MsgTypeMarketPicture, h.MsgType)
	assert.Equal(t, 300, h.PacketSize)

	// Packet time of day, host date
	assert.Equal(t, 10, h.Timestamp.Hour())
	assert.Equal(t, 30, h.Timestamp.Minute())
	assert.Equal(t, 15, h.Timestamp.Second())
	assert.Equal(t, fixedTime.Year(), h.Timestamp.Year())
	assert.Equal(t, fixedTime.Month(), h.Timestamp.Month())
	assert.Equal(t, fixedTime.Day(), h.Timestamp.Day())
}

func TestParseHeader_TooShort(t *testing.T) {
	d := testDecoder()

	for _, n := range []int{0, 1, 10, 35} {
		_, err := d.ParseHeader(make([]byte, n))
		assert.ErrorIs(t, err, bse.ErrPacketTooShort, "size %d", n)
	}
}

func TestParseHeader_UnsupportedMessageType(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, 2022, defaultSpec(861384))

	_, err := d.ParseHeader(packet)
	assert.ErrorIs(t, err, bse.ErrUnsupportedMessageType)
}

func TestParseHeader_InvalidTimeFallsBackToHostClock(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(25, 61, 61, MsgTypeMarketPicture, defaultSpec(861384))

	h, err := d.ParseHeader(packet)
	require.NoError(t, err)
	assert.Equal(t, fixedTime.Truncate(time.Second), h.Timestamp)
}

func TestParseHeader_ComplexMessageAccepted(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPictureComplex, defaultSpec(861384))

	h, err := d.ParseHeader(packet)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeMarketPictureComplex, h.MsgType)
}

func TestParseHeader_BigEndianTimeProfile(t *testing.T) {
	d := NewDecoder(FixedSlotProfile().WithBigEndianTime(), zerolog.Nop())
	d.now = func() time.Time { return fixedTime }

	packet := buildPacket(0, 0, 0, MsgTypeMarketPicture, defaultSpec(861384))
	binary.BigEndian.PutUint16(packet[20:22], 14)
	binary.BigEndian.PutUint16(packet[22:24], 45)
	binary.BigEndian.PutUint16(packet[24:26], 30)

	h, err := d.ParseHeader(packet)
	require.NoError(t, err)
	assert.Equal(t, 14, h.Timestamp.Hour())
	assert.Equal(t, 45, h.Timestamp.Minute())
	assert.Equal(t, 30, h.Timestamp.Second())
}

func TestValidateLength_Mismatch(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, defaultSpec(861384))
	binary.LittleEndian.PutUint16(packet[4:6], 564) // Claims two slots

	h, err := d.ParseHeader(packet)
	require.NoError(t, err)
	assert.ErrorIs(t, d.ValidateLength(h, packet), bse.ErrFormatLengthMismatch)
}

func TestFrameSlots_SlotCounts(t *testing.T) {
	d := testDecoder()

	// Observed packet sizes and their slot counts
	for size, want := range map[int]int{300: 1, 564: 2, 828: 3, 1092: 4, 1356: 5, 1620: 6} {
		slots := d.FrameSlots(make([]byte, size))
		assert.Len(t, slots, want, "packet size %d", size)
	}
}

func TestFrameSlots_TrailingRemainderIgnored(t *testing.T) {
	d := testDecoder()

	// 550 bytes: one whole slot plus 250 trailing bytes
	slots := d.FrameSlots(make([]byte, 550))
	require.Len(t, slots, 1)
	assert.Len(t, slots[0], SlotSize)
}

func TestFrameSlots_HeaderOnly(t *testing.T) {
	d := testDecoder()
	assert.Empty(t, d.FrameSlots(make([]byte, HeaderSize)))
}

func TestParseRecord_CoreFields(t *testing.T) {
	d := testDecoder()
	spec := defaultSpec(861384)
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, spec)

	rec, err := d.ParseRecord(packet[HeaderSize:])
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, uint32(861384), rec.Token)
	assert.Equal(t, int32(8380000), rec.Open)
	assert.Equal(t, int32(8375000), rec.PrevClose)
	assert.Equal(t, int32(8390000), rec.High)
	assert.Equal(t, int32(8370000), rec.Low)
	assert.Equal(t, int32(125000), rec.Volume)
	assert.Equal(t, int32(8384700), rec.LTP)
	assert.Equal(t, int32(8382000), rec.ATP)
	assert.Equal(t, uint32(900001), rec.SeqNo)
}

func TestParseRecord_EmptySlot(t *testing.T) {
	d := testDecoder()

	rec, err := d.ParseRecord(make([]byte, SlotSize))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestParseRecord_ShortSlot(t *testing.T) {
	d := testDecoder()

	// Token present but core fields truncated
	slot := make([]byte, 40)
	binary.LittleEndian.PutUint32(slot[0:4], 861384)
	_, err := d.ParseRecord(slot)
	assert.Error(t, err)
}

func TestParseRecord_ShortSlotWithoutDepth(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, defaultSpec(861384))

	// Truncated past the ATP field but before the depth section
	rec, err := d.ParseRecord(packet[HeaderSize : HeaderSize+100])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int32(8382000), rec.ATP)
	assert.Nil(t, rec.Book)
}

func TestParseRecord_DepthFiltering(t *testing.T) {
	d := testDecoder()
	spec := defaultSpec(861384)
	spec.bids = []DepthLevel{
		{Price: 8384000, Qty: 500, Flag: 3},
		{Price: 8383900, Qty: 600, Flag: 2},
		{Price: 8383800, Qty: 700, Flag: 1},
		{Price: 0, Qty: 100},     // Zero price dropped
		{Price: 8383600, Qty: 0}, // Zero qty dropped
	}
	// Ask side entirely zero
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, spec)

	rec, err := d.ParseRecord(packet[HeaderSize:])
	require.NoError(t, err)
	require.NotNil(t, rec.Book)

	assert.Len(t, rec.Book.Bids, 3)
	assert.Empty(t, rec.Book.Asks)

	best, ok := rec.Book.BestBid()
	require.True(t, ok)
	assert.Equal(t, int32(8384000), best.Price)
	assert.Equal(t, int32(500), best.Qty)

	assert.Equal(t, int32(8384000), rec.BestBidPrice())
	assert.Equal(t, int32(0), rec.BestAskPrice())
}

func TestDecodePacket_MultiSlot(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture,
		defaultSpec(861384), defaultSpec(861385), defaultSpec(861386))

	h, records, err := d.DecodePacket(packet)
	require.NoError(t, err)
	assert.Equal(t, uint16(828), h.FormatID)
	require.Len(t, records, 3)
	assert.Equal(t, uint32(861385), records[1].Token)
}

func TestDecodePacket_EmptySlotsSkipped(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture,
		defaultSpec(861384), nil, defaultSpec(861386))

	_, records, err := d.DecodePacket(packet)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint32(861384), records[0].Token)
	assert.Equal(t, uint32(861386), records[1].Token)
}

func TestDecodePacket_LengthMismatchRejectsPacket(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, defaultSpec(861384))
	binary.LittleEndian.PutUint16(packet[4:6], 1620)

	_, _, err := d.DecodePacket(packet)
	assert.ErrorIs(t, err, bse.ErrFormatLengthMismatch)
}

func TestDecodeBody_SlotCounts(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture,
		defaultSpec(861384), nil, defaultSpec(861386))

	records, counts := d.DecodeBody(packet)
	require.Len(t, records, 2)
	assert.Equal(t, 3, counts.Slots)
	assert.Equal(t, 1, counts.EmptySlots)
	assert.Zero(t, counts.RecordErrors)
}

func TestWithRecords_DrawsFromPool(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, defaultSpec(861384))

	// A released record must be the next one the decode path hands out.
	seeded := AcquireRecord()
	ReleaseRecord(seeded)

	var got *MarketRecord
	err := d.WithRecords(packet, func(_ *Header, recs []*MarketRecord) error {
		require.Len(t, recs, 1)
		got = recs[0]
		// Fields only hold inside the callback; release zeroes them.
		assert.Equal(t, uint32(861384), got.Token)
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, seeded, got)
}

func TestWithRecords_PooledDecode(t *testing.T) {
	d := testDecoder()
	packet := buildPacket(10, 30, 15, MsgTypeMarketPicture, defaultSpec(861384))

	var seen uint32
	err := d.WithRecords(packet, func(h *Header, recs []*MarketRecord) error {
		require.Len(t, recs, 1)
		seen = recs[0].Token
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(861384), seen)
}
