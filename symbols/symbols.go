// Package symbols resolves NFCAST token IDs to contract metadata using
// the token master file loaded once at startup.
package symbols

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	bse "github.com/anv-het/bse-udp"
)

// UnknownSymbol is attached to tokens missing from the token master.
// An unknown token never fails a quote.
const UnknownSymbol = "UNKNOWN"

// Paise is a minor-unit currency amount. The token master file carries
// strikes both as bare numbers and as quoted strings depending on the
// tool that produced it, so both forms unmarshal.
type Paise int64

// UnmarshalJSON accepts `8270000` and `"8270000"` alike.
func (p *Paise) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid paise amount %q: %w", s, err)
	}
	*p = Paise(v)
	return nil
}

// Contract describes one tradable instrument from the token master.
type Contract struct {
	Ticker     string `json:"symbol"`
	Expiry     string `json:"expiry"`       // DD-MMM-YYYY
	OptionType string `json:"option_type"`  // "CE", "PE" or empty for futures
	Strike     Paise  `json:"strike_price"` // minor units
}

// IsOption reports whether the contract is an option rather than a future.
func (c Contract) IsOption() bool {
	return c.OptionType == "CE" || c.OptionType == "PE"
}

// StrikeDisplay returns the strike in rupees for symbol building.
func (c Contract) StrikeDisplay() string {
	if c.Strike%100 == 0 {
		return strconv.FormatInt(int64(c.Strike)/100, 10)
	}
	return strconv.FormatFloat(float64(c.Strike)/100, 'f', 2, 64)
}

// TradingSymbol synthesizes the composite identifier used downstream:
// TICKERDDMMMYYYY_STRIKECE / _STRIKEPE for options, TICKERDDMMMYYYY_FUT
// for futures.
func (c Contract) TradingSymbol() string {
	if c.Ticker == "" {
		return UnknownSymbol
	}
	expiry := strings.ReplaceAll(c.Expiry, "-", "")
	if c.IsOption() {
		return fmt.Sprintf("%s%s_%s%s", c.Ticker, expiry, c.StrikeDisplay(), c.OptionType)
	}
	return fmt.Sprintf("%s%s_FUT", c.Ticker, expiry)
}

// Master is the read-only token-to-contract lookup table. It is safe to
// share across goroutines once loaded; nothing mutates it afterwards.
type Master struct {
	contracts map[uint32]Contract
}

// Load reads the token master JSON, a single object keyed by decimal
// token-ID strings. A missing file is an error for the caller to decide
// on; a master with zero tokens is usable (everything resolves UNKNOWN).
func Load(path string, log zerolog.Logger) (*Master, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", bse.ErrTokenMasterNotFound, path)
		}
		return nil, fmt.Errorf("reading token master %s: %w", path, err)
	}

	var byID map[string]Contract
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("parsing token master %s: %w", path, err)
	}

	m := &Master{contracts: make(map[uint32]Contract, len(byID))}
	for id, contract := range byID {
		token, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			log.Warn().Str("token", id).Msg("skipping non-numeric token id")
			continue
		}
		m.contracts[uint32(token)] = contract
	}

	log.Info().Int("tokens", len(m.contracts)).Str("path", path).Msg("token master loaded")
	return m, nil
}

// Empty returns a master with no contracts; every token resolves to the
// unknown placeholder.
func Empty() *Master {
	return &Master{contracts: map[uint32]Contract{}}
}

// Resolve looks up a token. Missing tokens yield a placeholder contract
// whose TradingSymbol is UNKNOWN; resolution never errors.
func (m *Master) Resolve(token uint32) (Contract, bool) {
	c, ok := m.contracts[token]
	return c, ok
}

// Len returns the number of loaded contracts.
func (m *Master) Len() int {
	return len(m.contracts)
}
