//go:build linux

package server

import (
	"net"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// setQuickAck enables TCP_QUICKACK on Linux, per spec.md §4.F's TCP
// tuning list ("On Linux, also set TCP_QUICKACK"). Best-effort: failures
// are logged, never fatal.
func setQuickAck(log *zap.Logger, tc *net.TCPConn) {
	raw, err := tc.SyscallConn()
	if err != nil {
		log.Debug("quickack: syscall conn unavailable", zap.Error(err))
		return
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
	if ctrlErr != nil {
		log.Debug("quickack: control failed", zap.Error(ctrlErr))
		return
	}
	if sockErr != nil {
		log.Debug("quickack: setsockopt failed", zap.Error(sockErr))
	}
}
