// Package receiver drives the decode pipeline: one datagram at a time,
// decoded fully and handed downstream before the next receive.
package receiver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/anv-het/bse-udp/multicast"
	"github.com/anv-het/bse-udp/nfcast"
	"github.com/anv-het/bse-udp/quote"
	"github.com/anv-het/bse-udp/sink"
)

// receive buffer, above the observed 1620-byte maximum packet
const recvBufSize = 2048

// PacketSource supplies raw datagrams. Receives must be bounded-wait so
// the loop can observe cancellation between packets.
type PacketSource interface {
	Receive(buf []byte) (int, net.Addr, error)
}

// Publisher fans collected quotes out to live subscribers. Optional.
type Publisher interface {
	Publish(quotes []*quote.Quote)
}

// Receiver runs the synchronous pull loop. Stateless across packets;
// UDP loss, reordering and duplication are accepted, never corrected.
type Receiver struct {
	source    PacketSource
	decoder   *nfcast.Decoder
	collector *quote.Collector
	saver     *sink.Saver
	publisher Publisher

	log       zerolog.Logger
	warnLimit *rate.Limiter
	statsEach time.Duration

	stats Stats
	buf   []byte
}

// Option is a functional option for configuring the receiver.
type Option func(*Receiver)

// WithPublisher attaches a live quote publisher (e.g. the websocket hub).
func WithPublisher(p Publisher) Option {
	return func(r *Receiver) { r.publisher = p }
}

// WithStatsInterval sets how often the counter line is logged.
func WithStatsInterval(d time.Duration) Option {
	return func(r *Receiver) { r.statsEach = d }
}

// New wires the pipeline stages together.
func New(source PacketSource, decoder *nfcast.Decoder, collector *quote.Collector, saver *sink.Saver, log zerolog.Logger, opts ...Option) *Receiver {
	r := &Receiver{
		source:    source,
		decoder:   decoder,
		collector: collector,
		saver:     saver,
		log:       log,
		// A garbage burst must not flood the log: a few warnings per
		// second, the rest only counted.
		warnLimit: rate.NewLimiter(rate.Every(time.Second), 5),
		statsEach: time.Minute,
		buf:       make([]byte, recvBufSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run receives until the context is cancelled or the transport fails
// fatally. Receive timeouts are idle ticks, not errors.
func (r *Receiver) Run(ctx context.Context) error {
	r.log.Info().Msg("receive loop started")
	lastStats := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.stats.Log(r.log, "receive loop stopped")
			return ctx.Err()
		default:
		}

		n, src, err := r.source.Receive(r.buf)
		if err != nil {
			if multicast.IsTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				r.stats.Log(r.log, "transport closed")
				return err
			}
			r.warn().Err(err).Msg("receive failed")
			continue
		}

		r.ProcessPacket(r.buf[:n], src)

		if r.statsEach > 0 && time.Since(lastStats) >= r.statsEach {
			r.stats.Log(r.log, "pipeline statistics")
			lastStats = time.Now()
		}
	}
}

// ProcessPacket runs one datagram through decode, collect and save.
// Failures discard the packet (or record) and the loop continues.
func (r *Receiver) ProcessPacket(data []byte, src net.Addr) {
	r.stats.PacketsReceived++
	r.stats.BytesReceived += uint64(len(data))

	header, err := r.decoder.ParseHeader(data)
	if err != nil {
		r.stats.PacketsInvalid++
		r.warn().Err(err).Int("size", len(data)).Msg("packet rejected")
		return
	}
	if err := r.decoder.ValidateLength(header, data); err != nil {
		r.stats.PacketsInvalid++
		r.warn().Err(err).Msg("packet rejected")
		return
	}

	r.stats.PacketsValid++
	switch header.MsgType {
	case nfcast.MsgTypeMarketPicture:
		r.stats.Packets2020++
	case nfcast.MsgTypeMarketPictureComplex:
		r.stats.Packets2021++
	}

	records, counts := r.decoder.DecodeBody(data)
	r.stats.RecordsDecoded += uint64(len(records))
	r.stats.EmptySlots += uint64(counts.EmptySlots)
	if r.decoder.Profile().Compressed {
		r.stats.DecompressErrors += uint64(counts.RecordErrors)
	} else {
		r.stats.DecodeErrors += uint64(counts.RecordErrors)
	}
	if len(records) == 0 {
		return
	}

	quotes := r.collector.Collect(header, records)
	if len(quotes) == 0 {
		return
	}
	r.stats.QuotesCollected += uint64(len(quotes))

	if r.saver != nil {
		if r.saver.Save(quotes) {
			r.stats.QuotesSaved += uint64(len(quotes))
		} else {
			r.stats.SaveFailures++
		}
		r.saver.SaveRawPacket(data, header.MsgType)
	}

	if r.publisher != nil {
		r.publisher.Publish(quotes)
	}

	if src != nil {
		r.log.Debug().
			Stringer("source", src).
			Int("size", len(data)).
			Int("quotes", len(quotes)).
			Msg("packet processed")
	}
}

// Stats returns a copy of the pipeline counters.
func (r *Receiver) Stats() Stats {
	return r.stats
}

// warn returns a warning event, degraded to debug when the throttle is
// exhausted so counters remain the source of truth during bursts.
func (r *Receiver) warn() *zerolog.Event {
	if r.warnLimit.Allow() {
		return r.log.Warn()
	}
	return r.log.Debug()
}
