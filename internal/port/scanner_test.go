package port

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeTCPPort asks the OS for an unused port and releases it.
func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// TestProbePort_FreePort verifies that ProbePort succeeds
// for a port no process is using.
func TestProbePort_FreePort(t *testing.T) {
	port := freeTCPPort(t)
	assert.NoError(t, NewScanner("").ProbePort(port, "tcp"), "port %d should be available", port)
}

// TestProbePort_UsedPort verifies that ProbePort fails
// when the port is already bound, as it would be by a server left running
// from a previous start.
func TestProbePort_UsedPort(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "failed to start test listener")
	defer func() { _ = listener.Close() }()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)

	assert.Error(t, NewScanner("").ProbePort(tcpAddr.Port, "tcp"),
		"port %d should be in use (we have a listener on it)", tcpAddr.Port)
}

// TestProbePort_UDP verifies UDP probing.
func TestProbePort_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err, "failed to start test UDP listener")
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)

	assert.Error(t, NewScanner("").ProbePort(udpAddr.Port, "udp"), "UDP port %d should be in use", udpAddr.Port)
}

// TestProbePort_Invalid verifies unknown protocols and out-of-range ports
// are reported unavailable (fail-safe).
func TestProbePort_Invalid(t *testing.T) {
	scanner := NewScanner("")
	assert.Error(t, scanner.ProbePort(50000, "sctp"))
	assert.Error(t, scanner.ProbePort(70000, "tcp"))
	assert.Error(t, scanner.ProbePort(-1, "tcp"))
}

func TestProbe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	scanner := NewScanner("")
	assert.Error(t, scanner.Probe(listener.Addr().String(), "tcp"))
	assert.NoError(t, scanner.Probe("127.0.0.1:0", "tcp"))

	err = scanner.Probe("127.0.0.1:0", "sctp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported protocol")
}

// TestScanner_Host verifies probes honour the configured interface.
func TestScanner_Host(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	port := listener.Addr().(*net.TCPAddr).Port

	assert.Error(t, NewScanner("127.0.0.1").ProbePort(port, "tcp"))
}
