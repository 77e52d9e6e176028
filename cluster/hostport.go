package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// HostPort is an immutable network endpoint: the (host, port) a test uses
// to reach a resource from outside the cluster.
type HostPort struct {
	Host string
	Port int
}

// ParseHostPort parses "host:port". The last colon splits host from port,
// so IPv6 literals work with or without brackets.
func ParseHostPort(s string) (HostPort, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return HostPort{}, fmt.Errorf("invalid host:port %q", s)
	}
	host := strings.Trim(s[:idx], "[]")
	if host == "" {
		return HostPort{}, fmt.Errorf("invalid host:port %q", s)
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return HostPort{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return HostPort{Host: host, Port: port}, nil
}

// Localhost returns a loopback endpoint with the given port.
func Localhost(port int) HostPort {
	return HostPort{Host: "127.0.0.1", Port: port}
}

// String renders the endpoint, bracketing IPv6 hosts.
func (h HostPort) String() string {
	if strings.Contains(h.Host, ":") {
		return "[" + h.Host + "]:" + strconv.Itoa(h.Port)
	}
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// HTTPURL returns the endpoint as an http URL.
func (h HostPort) HTTPURL() string {
	return "http://" + h.String()
}

// HTTPSURL returns the endpoint as an https URL.
func (h HostPort) HTTPSURL() string {
	return "https://" + h.String()
}
