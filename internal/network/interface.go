package network

import (
	"fmt"
	"net"
	"strings"
)

// Looks up a named interface, nil for empty name (kernel default)
func ResolveInterface(name string) (iface *net.Interface, err error) {
	if name == "" {
		return
	}
	iface, err = net.InterfaceByName(name)
	if err != nil {
		err = fmt.Errorf("unknown network interface '%s': %w", name, err)
		return
	}
	return
}

// Retrieves the network interface corresponding to a specific address
func getInterfaceForAddress(address string) (iface *net.Interface, err error) {
	address = strings.TrimPrefix(address, "[")
	address = strings.TrimSuffix(address, "]")

	ifaces, err := net.Interfaces()
	if err != nil {
		return
	}

	for _, candidate := range ifaces {
		addrs, addrErr := candidate.Addrs()
		if addrErr != nil {
			continue
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if ok && ipNet.IP.String() == address {
				iface = &candidate
				return
			}
		}
	}

	err = fmt.Errorf("no matching interface found for address %v", address)
	return
}

// Determines the interface used to reach a given destination address
func getInterfaceForDestination(destination net.IP) (iface *net.Interface, err error) {
	// Quick dial to see what source interface the system would use
	conn, dialErr := net.DialUDP("udp", nil, &net.UDPAddr{IP: destination, Port: 9})
	if dialErr != nil {
		err = fmt.Errorf("failed to find interface for destination %s: %w", destination, dialErr)
		return
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	iface, err = getInterfaceForAddress(localAddr.IP.String())
	return
}
