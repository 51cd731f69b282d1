package network

import (
	"fmt"
	"mclbus/pkg/connection"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Subscribes the socket to the endpoint's group
func joinGroup(conn *net.UDPConn, endpoint connection.Endpoint, iface *net.Interface) (err error) {
	group := &net.UDPAddr{IP: endpoint.UDPAddr().IP}

	if endpoint.IsIPv6() {
		pc := ipv6.NewPacketConn(conn)
		err = pc.JoinGroup(iface, group)
	} else {
		pc := ipv4.NewPacketConn(conn)
		err = pc.JoinGroup(iface, group)
	}
	if err != nil {
		err = fmt.Errorf("failed to join multicast group %s: %w", endpoint.Address, err)
		return
	}
	return
}

// Applies hop limit, loopback and outgoing interface to a sending socket
func configureSender(conn *net.UDPConn, endpoint connection.Endpoint, iface *net.Interface) (err error) {
	ttl := endpoint.TTL
	if ttl == 0 {
		ttl = connection.DefaultTTL
	}

	if endpoint.IsIPv6() {
		pc := ipv6.NewPacketConn(conn)
		err = pc.SetMulticastHopLimit(ttl)
		if err != nil {
			err = fmt.Errorf("failed to set multicast hop limit: %w", err)
			return
		}
		// Local listeners on the same host must see our traffic
		err = pc.SetMulticastLoopback(true)
		if err != nil {
			err = fmt.Errorf("failed to enable multicast loopback: %w", err)
			return
		}
		if iface != nil {
			err = pc.SetMulticastInterface(iface)
			if err != nil {
				err = fmt.Errorf("failed to set multicast interface %s: %w", iface.Name, err)
				return
			}
		}
		return
	}

	pc := ipv4.NewPacketConn(conn)
	err = pc.SetMulticastTTL(ttl)
	if err != nil {
		err = fmt.Errorf("failed to set multicast ttl: %w", err)
		return
	}
	err = pc.SetMulticastLoopback(true)
	if err != nil {
		err = fmt.Errorf("failed to enable multicast loopback: %w", err)
		return
	}
	if iface != nil {
		err = pc.SetMulticastInterface(iface)
		if err != nil {
			err = fmt.Errorf("failed to set multicast interface %s: %w", iface.Name, err)
			return
		}
	}
	return
}
