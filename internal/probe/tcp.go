package probe

import (
	"context"
	"net"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// TCPChecker dials the target and reports whether the connection opened.
type TCPChecker struct{}

func NewTCPChecker() *TCPChecker { return &TCPChecker{} }

func (c *TCPChecker) Check(ctx context.Context, target domain.Target) CheckResult {
	start := time.Now()
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", target.Addr())
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return CheckResult{OK: false, LatencyMS: latency, Message: err.Error()}
	}
	conn.Close()
	return CheckResult{OK: true, LatencyMS: latency, Message: "connected"}
}
