//go:build !linux && !windows

// Package network holds socket helpers shared by the listeners.
package network

import "net"

// ReuseAddrListenConfig returns the default listen config on platforms
// where the option isn't set explicitly.
func ReuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
