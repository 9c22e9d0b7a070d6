package calendar

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Reachability 网络可达性探测
type Reachability interface {
	IsReachable(ctx context.Context) bool
}

// TCPProbe 向日历服务器建立一次 TCP 连接来判断是否联网
type TCPProbe struct {
	addr    string
	timeout time.Duration
}

// NewTCPProbe 从日历 base URL 推出探测地址（缺省端口按 scheme 取 443/80）
func NewTCPProbe(baseURL string, timeout time.Duration) (*TCPProbe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar base url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid calendar base url %q: missing host", baseURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return &TCPProbe{addr: net.JoinHostPort(u.Hostname(), port), timeout: timeout}, nil
}

func (p *TCPProbe) IsReachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// AlwaysReachable 跳过探测（REACHABILITY_PROBE=none）
type AlwaysReachable struct{}

func (AlwaysReachable) IsReachable(context.Context) bool { return true }
