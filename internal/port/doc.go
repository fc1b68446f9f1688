// Package port probes whether the application server's listen address is
// free before the startup sequence is attempted.
//
// The probe binds the address with net.Listen / net.ListenPacket and closes
// it immediately. It is advisory: another process may take the port between
// the probe and the server's own bind. Only the check command uses it; the
// startup sequence itself never probes.
package port
