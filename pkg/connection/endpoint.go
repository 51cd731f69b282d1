// Network endpoints that message types are bound to
package connection

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

const (
	DefaultPort int = 26000
	DefaultTTL  int = 1
)

var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Where a message type's traffic travels: a multicast group (or unicast address) and port
type Endpoint struct {
	Address   string `json:"address"`
	Port      int    `json:"port,omitempty"`
	Interface string `json:"interface,omitempty"` // interface for multicast joins and sends
	TTL       int    `json:"ttl,omitempty"`       // multicast hop limit
}

// Creates endpoint with default port and TTL
func New(address string) (endpoint Endpoint, err error) {
	endpoint = Endpoint{Address: address}
	endpoint, err = endpoint.WithDefaults()
	return
}

// Fills zero port/TTL and validates
func (endpoint Endpoint) WithDefaults() (filled Endpoint, err error) {
	filled = endpoint
	if filled.Port == 0 {
		filled.Port = DefaultPort
	}
	if filled.TTL == 0 {
		filled.TTL = DefaultTTL
	}
	err = filled.Validate()
	return
}

// Checks address, port range and TTL
func (endpoint Endpoint) Validate() (err error) {
	if _, parseErr := netip.ParseAddr(endpoint.Address); parseErr != nil {
		err = fmt.Errorf("%w: address '%s' is not an IP address", ErrInvalidEndpoint, endpoint.Address)
		return
	}
	if endpoint.Port < 1 || endpoint.Port > 65535 {
		err = fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, endpoint.Port)
		return
	}
	if endpoint.TTL < 0 || endpoint.TTL > 255 {
		err = fmt.Errorf("%w: ttl %d out of range", ErrInvalidEndpoint, endpoint.TTL)
		return
	}
	return
}

// Parsed address (zero Addr if invalid)
func (endpoint Endpoint) Addr() (addr netip.Addr) {
	addr, _ = netip.ParseAddr(endpoint.Address)
	return
}

func (endpoint Endpoint) IsMulticast() (multicast bool) {
	multicast = endpoint.Addr().IsMulticast()
	return
}

func (endpoint Endpoint) IsIPv6() (v6 bool) {
	addr := endpoint.Addr()
	v6 = addr.Is6() && !addr.Is4In6()
	return
}

// Network name for net package dials ("udp4"/"udp6")
func (endpoint Endpoint) Network() (network string) {
	network = "udp4"
	if endpoint.IsIPv6() {
		network = "udp6"
	}
	return
}

func (endpoint Endpoint) UDPAddr() (addr *net.UDPAddr) {
	addr = net.UDPAddrFromAddrPort(netip.AddrPortFrom(endpoint.Addr().Unmap(), uint16(endpoint.Port)))
	return
}

// host:port form
func (endpoint Endpoint) String() (text string) {
	text = net.JoinHostPort(endpoint.Address, strconv.Itoa(endpoint.Port))
	return
}
