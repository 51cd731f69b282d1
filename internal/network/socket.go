// Datagram socket setup for bus endpoints
package network

import (
	"context"
	"fmt"
	"mclbus/pkg/connection"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Allows several listeners on one host to bind the same group and port.
// Only applied to multicast endpoints, where the kernel copies each datagram to every member socket.
func reuseControl(network, address string, c syscall.RawConn) error {
	// Using x/sys/unix package for more up-to-date syscall numbers
	var err error
	ctlErr := c.Control(func(fd uintptr) {
		err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if err != nil {
			return
		}
		err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if ctlErr != nil {
		return ctlErr
	}
	return err
}

// Creates a receiving socket bound to the endpoint.
// Multicast endpoints share the port and join the group on the configured interface.
// Unicast endpoints accept a single listener per host.
func ListenEndpoint(ctx context.Context, endpoint connection.Endpoint) (conn *net.UDPConn, err error) {
	err = endpoint.Validate()
	if err != nil {
		return
	}

	iface, err := ResolveInterface(endpoint.Interface)
	if err != nil {
		return
	}

	// Unicast datagrams go to only one of several sockets sharing a port, so unicast binds are exclusive
	var cfg net.ListenConfig
	if endpoint.IsMulticast() {
		cfg.Control = reuseControl
	}
	pc, err := cfg.ListenPacket(ctx, endpoint.Network(), endpoint.UDPAddr().String())
	if err != nil {
		err = fmt.Errorf("failed to listen on %s: %w", endpoint.String(), err)
		return
	}
	conn = pc.(*net.UDPConn)

	if endpoint.IsMulticast() {
		err = joinGroup(conn, endpoint, iface)
		if err != nil {
			conn.Close()
			conn = nil
			return
		}
	}
	return
}

// Creates an unconnected sending socket with multicast options applied.
// Sends must use WriteToUDP with the endpoint address.
func OpenSender(endpoint connection.Endpoint) (conn *net.UDPConn, err error) {
	err = endpoint.Validate()
	if err != nil {
		return
	}

	iface, err := ResolveInterface(endpoint.Interface)
	if err != nil {
		return
	}

	conn, err = net.ListenUDP(endpoint.Network(), nil)
	if err != nil {
		err = fmt.Errorf("failed to open sending socket for %s: %w", endpoint.String(), err)
		return
	}

	if endpoint.IsMulticast() {
		err = configureSender(conn, endpoint, iface)
		if err != nil {
			conn.Close()
			conn = nil
			return
		}
	}
	return
}
