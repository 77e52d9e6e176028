// Package netutil reserves local TCP ports for port-forward sessions.
// Its central type, PortRegistry, asks the kernel for a free port and tracks
// every port handed out by this process, closing the TOCTOU window where two
// concurrent forwards would otherwise receive the same port (the first caller
// closes its probe listener before the second caller opens theirs).
package netutil
