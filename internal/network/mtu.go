package network

import (
	"fmt"
	"mclbus/pkg/connection"
	"net"
)

const (
	ip4Overhead int = 60
	ip6Overhead int = 80
	udpOverhead int = 8

	// Largest payload a single UDP datagram can carry
	MaxUDPPayloadIPv4 int = 65535 - 20 - udpOverhead
	MaxUDPPayloadIPv6 int = 65535 - udpOverhead

	// Default to ethernet standard MTU if no other MTU is found
	defaultMTU int = 1500
)

// Retrieves total IP and UDP header overhead for the endpoint family
func getTransportOverhead(endpoint connection.Endpoint) (overhead int, err error) {
	addr := endpoint.Addr()
	switch {
	case !addr.IsValid():
		err = fmt.Errorf("unsupported destination address '%v'", endpoint.Address)
	case endpoint.IsIPv6():
		overhead = ip6Overhead + udpOverhead
	default:
		overhead = ip4Overhead + udpOverhead
	}
	return
}

// Hard datagram size limit for the endpoint family
func MaxDatagramPayload(endpoint connection.Endpoint) (maxPayloadSize int) {
	maxPayloadSize = MaxUDPPayloadIPv4
	if endpoint.IsIPv6() {
		maxPayloadSize = MaxUDPPayloadIPv6
	}
	return
}

// Determines the largest UDP payload that leaves without IP fragmentation
func FindSendingMaxUDPPayload(endpoint connection.Endpoint) (maxPayloadSize int, err error) {
	overhead, err := getTransportOverhead(endpoint)
	if err != nil {
		err = fmt.Errorf("failed to retrieve transport layer overhead: %w", err)
		return
	}

	mtu, err := endpointMTU(endpoint)
	if err != nil {
		return
	}

	// Safety check - assign default
	if mtu <= 0 {
		mtu = defaultMTU
	}

	maxPayloadSize = min(mtu-overhead, MaxDatagramPayload(endpoint))
	return
}

// MTU of the interface traffic for the endpoint leaves through
func endpointMTU(endpoint connection.Endpoint) (mtu int, err error) {
	iface, err := ResolveInterface(endpoint.Interface)
	if err != nil {
		return
	}
	if iface != nil {
		mtu = iface.MTU
		return
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return
	}

	destIsLoopback := endpoint.Addr().IsLoopback()

	// Common MTU across non-loopback interfaces avoids a route lookup
	var commonMTU int
	for _, candidate := range ifaces {
		isLoopback := candidate.Flags&net.FlagLoopback != 0
		if destIsLoopback && isLoopback {
			mtu = candidate.MTU
			return
		}
		if isLoopback || candidate.Flags&net.FlagUp == 0 {
			continue
		}

		if commonMTU == 0 {
			commonMTU = candidate.MTU
		} else if commonMTU != candidate.MTU {
			// MTUs are not the same across non-loopback interfaces
			commonMTU = 0
			break
		}
	}
	if commonMTU != 0 {
		mtu = commonMTU
		return
	}

	// Determine MTU by route table
	iface, routeErr := getInterfaceForDestination(endpoint.UDPAddr().IP)
	if routeErr != nil {
		// Multicast without a route still goes out the default interface
		mtu = defaultMTU
		return
	}
	mtu = iface.MTU
	return
}
