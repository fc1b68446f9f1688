// Package port implements listen-address probing for the check command.
package port

import (
	"fmt"
	"net"
	"strconv"
)

// Scanner checks whether specific addresses are free on the host machine.
//
// It asks the operating system's network stack directly by binding the
// address, rather than parsing /proc/net/* or shelling out to lsof or ss,
// which may require elevated permissions.
type Scanner struct {
	// Host is the interface probed. Empty means all interfaces, which is
	// what the application server binds.
	Host string
}

// NewScanner creates a Scanner probing host. Empty means all interfaces.
func NewScanner(host string) *Scanner {
	return &Scanner{Host: host}
}

// ProbePort checks whether port is free for protocol ("tcp" or "udp") on
// s.Host. It returns nil when the port can be bound, the bind error when it
// cannot, and an error for unknown protocols or out-of-range ports.
func (s *Scanner) ProbePort(port int, protocol string) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range (0-65535)", port)
	}
	return s.Probe(net.JoinHostPort(s.Host, strconv.Itoa(port)), protocol)
}

// Probe binds addr for protocol and releases it. It returns the bind
// error when the address is unavailable.
func (s *Scanner) Probe(addr, protocol string) error {
	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		return listener.Close()

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return err
		}
		return conn.Close()

	default:
		return fmt.Errorf("unsupported protocol %q (valid: tcp, udp)", protocol)
	}
}
