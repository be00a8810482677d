package receiver

import "github.com/rs/zerolog"

// Stats are the pipeline counters, owned by the receiver and updated
// with single-writer semantics under the one-loop model. No individual
// decode failure surfaces as a hard error; it lands here instead.
type Stats struct {
	PacketsReceived uint64
	PacketsValid    uint64
	PacketsInvalid  uint64
	Packets2020     uint64
	Packets2021     uint64
	BytesReceived   uint64

	RecordsDecoded   uint64
	EmptySlots       uint64
	DecodeErrors     uint64
	DecompressErrors uint64

	QuotesCollected uint64
	QuotesSaved     uint64
	SaveFailures    uint64
}

// Log emits one structured line with the full counter set.
func (s *Stats) Log(log zerolog.Logger, msg string) {
	log.Info().
		Uint64("packets_received", s.PacketsReceived).
		Uint64("packets_valid", s.PacketsValid).
		Uint64("packets_invalid", s.PacketsInvalid).
		Uint64("packets_2020", s.Packets2020).
		Uint64("packets_2021", s.Packets2021).
		Uint64("bytes_received", s.BytesReceived).
		Uint64("records_decoded", s.RecordsDecoded).
		Uint64("empty_slots", s.EmptySlots).
		Uint64("decode_errors", s.DecodeErrors).
		Uint64("decompress_errors", s.DecompressErrors).
		Uint64("quotes_collected", s.QuotesCollected).
		Uint64("quotes_saved", s.QuotesSaved).
		Uint64("save_failures", s.SaveFailures).
		Msg(msg)
}
