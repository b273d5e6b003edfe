package server

import (
	"net"

	"go.uber.org/zap"
)

// tuneTCP applies the best-effort socket tuning spec.md §4.F requires on
// accept: Nagle disabled, socket buffer sizes, keepalive, and (on Linux)
// TCP_QUICKACK. Every failure is logged, never fatal, per spec.md's
// "these are best-effort" note.
func (s *Server) tuneTCP(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		s.log.Debug("disable nagle failed", zap.Error(err))
	}
	if s.cfg.SocketBufferBytes > 0 {
		if err := tc.SetReadBuffer(s.cfg.SocketBufferBytes); err != nil {
			s.log.Debug("set read buffer failed", zap.Error(err))
		}
		if err := tc.SetWriteBuffer(s.cfg.SocketBufferBytes); err != nil {
			s.log.Debug("set write buffer failed", zap.Error(err))
		}
	}
	if err := tc.SetKeepAlive(true); err != nil {
		s.log.Debug("enable keepalive failed", zap.Error(err))
	}
	setQuickAck(s.log, tc)
}
