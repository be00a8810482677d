// Package multicast is the thin UDP transport boundary for the NFCAST
// feed: join the group, hand datagrams up, stay out of decode business.
package multicast

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	bse "github.com/anv-het/bse-udp"
)

// Config holds the multicast group parameters.
//
// BSE publishes distinct groups per segment and environment, e.g.
// 226.1.0.1:11401 (simulation equity) and 227.0.0.21:12996 (production).
type Config struct {
	Group       string        // multicast group IP
	Port        int           // UDP port
	Interface   string        // network interface name, empty for default
	ReadBuffer  int           // socket receive buffer, bytes
	ReadTimeout time.Duration // per-receive deadline so shutdown can be observed
}

// DefaultConfig returns the production NFCAST defaults. The observed
// maximum packet is 1620 bytes; 2048 leaves headroom.
func DefaultConfig() Config {
	return Config{
		Group:       "227.0.0.21",
		Port:        12996,
		ReadBuffer:  2048,
		ReadTimeout: time.Second,
	}
}

// Conn is an open multicast membership. Not safe for concurrent Receive.
type Conn struct {
	udp   *net.UDPConn
	pconn *ipv4.PacketConn
	group net.IP
	iface *net.Interface
	cfg   Config
	log   zerolog.Logger
}

// Open binds the feed port, joins the multicast group on the configured
// interface (IGMP membership) and applies the receive buffer size.
func Open(cfg Config, log zerolog.Logger) (*Conn, error) {
	group := net.ParseIP(cfg.Group)
	if group == nil || !group.IsMulticast() {
		return nil, fmt.Errorf("invalid multicast group %q", cfg.Group)
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		var err error
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", cfg.Interface, err)
		}
	}

	laddr := &net.UDPAddr{IP: net.IPv4zero, Port: cfg.Port}
	udp, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("binding port %d: %w", cfg.Port, err)
	}

	pconn := ipv4.NewPacketConn(udp)
	if err := pconn.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
		udp.Close()
		return nil, fmt.Errorf("joining group %s: %w", cfg.Group, err)
	}

	if cfg.ReadBuffer > 0 {
		if err := udp.SetReadBuffer(cfg.ReadBuffer); err != nil {
			log.Warn().Err(err).Int("bytes", cfg.ReadBuffer).Msg("could not set read buffer")
		}
	}

	log.Info().
		Str("group", cfg.Group).Int("port", cfg.Port).Str("interface", cfg.Interface).
		Msg("joined multicast group")

	return &Conn{udp: udp, pconn: pconn, group: group, iface: iface, cfg: cfg, log: log}, nil
}

// Receive reads one datagram into buf, waiting at most the configured
// read timeout. Timeouts are reported via IsTimeout, not as fatal errors.
func (c *Conn) Receive(buf []byte) (int, net.Addr, error) {
	if c.udp == nil {
		return 0, nil, bse.ErrNotConnected
	}
	if c.cfg.ReadTimeout > 0 {
		if err := c.udp.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return 0, nil, err
		}
	}
	n, src, err := c.udp.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, err
	}
	return n, src, nil
}

// Close leaves the multicast group and closes the socket.
func (c *Conn) Close() error {
	if c.udp == nil {
		return nil
	}
	if err := c.pconn.LeaveGroup(c.iface, &net.UDPAddr{IP: c.group}); err != nil {
		c.log.Debug().Err(err).Msg("leave group failed")
	}
	err := c.udp.Close()
	c.udp = nil
	return err
}

// IsTimeout reports whether err is a read-deadline expiry.
func IsTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
