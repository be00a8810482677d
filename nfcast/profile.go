package nfcast

import "encoding/binary"

// LayoutProfile pins down the parts of the wire format that differ between
// feed modes and capture vintages: slot size, the byte order of the header
// fields, and whether record fields arrive raw or differentially compressed.
// Several mutually inconsistent layouts appear in the protocol record, so
// these are startup configuration rather than constants.
type LayoutProfile struct {
	Name string

	// Compressed selects the differential-encoding record path instead of
	// the fixed 264-byte slots. Not auto-detected per packet.
	Compressed bool

	// SlotSize is the fixed record stride in the uncompressed mode.
	SlotSize int

	// MinRecordSize is the uncompressed preamble length in compressed mode.
	MinRecordSize int

	// FormatIDOrder decodes header bytes 4-5. The production feed is
	// little-endian; earlier captures were read big-endian.
	FormatIDOrder binary.ByteOrder

	// TimeOrder decodes the header's hour/minute/second fields. At least
	// two incompatible encodings were observed across captures.
	TimeOrder binary.ByteOrder
}

// FixedSlotProfile is the canonical production layout: 264-byte slots,
// little-endian header fields, no compression.
func FixedSlotProfile() LayoutProfile {
	return LayoutProfile{
		Name:          "fixedslot",
		Compressed:    false,
		SlotSize:      SlotSize,
		MinRecordSize: 48,
		FormatIDOrder: binary.LittleEndian,
		TimeOrder:     binary.LittleEndian,
	}
}

// CompressedProfile is the alternate layout with differentially encoded
// fields and variable-length records.
func CompressedProfile() LayoutProfile {
	return LayoutProfile{
		Name:          "compressed",
		Compressed:    true,
		SlotSize:      SlotSize,
		MinRecordSize: 67,
		FormatIDOrder: binary.LittleEndian,
		TimeOrder:     binary.LittleEndian,
	}
}

// ProfileByName resolves a profile from its configuration name.
// Unknown names fall back to the fixed-slot profile.
func ProfileByName(name string) LayoutProfile {
	switch name {
	case "compressed":
		return CompressedProfile()
	default:
		return FixedSlotProfile()
	}
}

// WithBigEndianTime returns a copy of the profile reading the header
// time fields big-endian, for captures that used that encoding.
func (p LayoutProfile) WithBigEndianTime() LayoutProfile {
	p.TimeOrder = binary.BigEndian
	return p
}
