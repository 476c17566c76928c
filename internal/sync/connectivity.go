package sync

import (
	"net"
	"time"
)

// DialProbe returns a connectivity check that succeeds when a TCP
// connection to addr can be opened within timeout.
func DialProbe(addr string, timeout time.Duration) func() bool {
	return func() bool {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}
