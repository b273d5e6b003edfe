//go:build !linux

package server

import (
	"net"

	"go.uber.org/zap"
)

// setQuickAck is a no-op outside Linux: TCP_QUICKACK has no equivalent
// on other platforms, and spec.md §4.F scopes it to Linux explicitly.
func setQuickAck(*zap.Logger, *net.TCPConn) {}
