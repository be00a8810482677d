// Command bsefeed joins the BSE Direct NFCAST multicast group, decodes
// market picture packets and persists normalized quotes to disk,
// optionally streaming them to websocket subscribers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/anv-het/bse-udp/multicast"
	"github.com/anv-het/bse-udp/nfcast"
	"github.com/anv-het/bse-udp/quote"
	"github.com/anv-het/bse-udp/receiver"
	"github.com/anv-het/bse-udp/sink"
	"github.com/anv-het/bse-udp/symbols"
	"github.com/anv-het/bse-udp/utils"
	"github.com/anv-het/bse-udp/wsfeed"
)

func main() {
	cfg, err := utils.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load failed")
	}

	log := newLogger(cfg.App.LogLevel).With().Str("app", cfg.App.Name).Logger()

	master, err := symbols.Load(cfg.Feed.TokenMaster, log)
	if err != nil {
		// Quotes for unresolved tokens carry the UNKNOWN symbol, so a
		// missing master degrades output instead of blocking startup.
		log.Warn().Err(err).Str("path", cfg.Feed.TokenMaster).
			Msg("token master unavailable, symbols will be UNKNOWN")
		master = symbols.Empty()
	} else {
		log.Info().Int("contracts", master.Len()).Msg("token master loaded")
	}

	profile := nfcast.ProfileByName(cfg.Feed.Profile)
	if cfg.Feed.BigEndianTime {
		profile = profile.WithBigEndianTime()
	}
	decoder := nfcast.NewDecoder(profile, log)
	collector := quote.NewCollector(master, log)

	saver, err := sink.NewSaver(cfg.Output.Dir, log,
		sink.WithJSON(cfg.Output.JSON),
		sink.WithCSV(cfg.Output.CSV),
		sink.WithRawCapture(cfg.Output.RawStoreLimit),
	)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Output.Dir).Msg("output setup failed")
	}

	conn, err := multicast.Open(multicast.Config{
		Group:       cfg.Multicast.Group,
		Port:        cfg.Multicast.Port,
		Interface:   cfg.Multicast.Interface,
		ReadBuffer:  cfg.Multicast.ReadBuffer,
		ReadTimeout: cfg.Multicast.ReadTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).
			Str("group", cfg.Multicast.Group).Int("port", cfg.Multicast.Port).
			Msg("multicast join failed")
	}
	defer conn.Close()

	opts := []receiver.Option{receiver.WithStatsInterval(cfg.Feed.StatsInterval)}

	var hub *wsfeed.Hub
	if cfg.App.WSListenAddr != "" {
		hub = wsfeed.NewHub(log)
		opts = append(opts, receiver.WithPublisher(hub))
		go serveWS(cfg.App.WSListenAddr, hub, log)
		defer hub.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rcv := receiver.New(conn, decoder, collector, saver, log, opts...)
	if err := rcv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("receive loop failed")
	}

	stats := rcv.Stats()
	stats.Log(log, "final statistics")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func serveWS(addr string, hub *wsfeed.Hub, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/quotes", hub)
	log.Info().Str("addr", addr).Msg("websocket feed listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("websocket server stopped")
	}
}
