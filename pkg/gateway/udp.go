// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"
	"net"

	"github.com/Thermoquad/hilbridge/pkg/config"
)

// ListenUDP binds the sensor socket on every interface. Go enables
// SO_BROADCAST on datagram sockets, so the same socket can send to a
// broadcast remote.
func ListenUDP(localPort int) (*net.UDPConn, error) {
	uaddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", localPort))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", uaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d: %w", localPort, err)
	}
	return conn, nil
}

// ResolveRemote resolves the address outgoing datagrams are sent to.
// Broadcast addresses are refused unless broadcast is set.
func ResolveRemote(address string, port int, broadcast bool) (*net.UDPAddr, error) {
	uaddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, fmt.Errorf("invalid remote address %s: %w", address, err)
	}
	if !broadcast && uaddr.IP.Equal(net.IPv4bcast) {
		return nil, fmt.Errorf("remote %s is a broadcast address but broadcast is disabled", address)
	}
	return uaddr, nil
}

// ParseRemoteRx returns the only sender accepted for sensor datagrams, or
// nil for config.AnyAddress.
func ParseRemoteRx(address string) (net.IP, error) {
	if address == "" || address == config.AnyAddress {
		return nil, nil
	}
	ip := net.ParseIP(address)
	if ip == nil {
		addrs, err := net.LookupIP(address)
		if err != nil || len(addrs) == 0 {
			return nil, fmt.Errorf("invalid remote rx address %q", address)
		}
		ip = addrs[0]
	}
	return ip, nil
}
