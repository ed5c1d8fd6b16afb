package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NodeEndpoint identifies one cluster node by the address of its cache
// protocol listener.
type NodeEndpoint struct {
	Host string
	Port int
}

// ParseEndpoint parses "host:port". IPv6 hosts must be bracketed.
func ParseEndpoint(s string) (NodeEndpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return NodeEndpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	if host == "" {
		return NodeEndpoint{}, fmt.Errorf("invalid endpoint %q: host is required", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return NodeEndpoint{}, fmt.Errorf("invalid endpoint %q: bad port %q", s, portStr)
	}
	return NodeEndpoint{Host: host, Port: port}, nil
}

// Key returns the node identity used in snapshots and color maps.
func (e NodeEndpoint) Key() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e NodeEndpoint) String() string { return e.Key() }

// ManagementPort derives the management listener port from the cache
// protocol port: Port - offset. e.g. 11222 - 1232 = 9990.
func (e NodeEndpoint) ManagementPort(offset int) (int, error) {
	p := e.Port - offset
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("management port %d for %s (offset %d) out of range", p, e.Key(), offset)
	}
	return p, nil
}

// ManagementAddr returns host:managementPort.
func (e NodeEndpoint) ManagementAddr(offset int) (string, error) {
	p, err := e.ManagementPort(offset)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(p)), nil
}
