// Package netutil provides network address helpers.
package netutil

import (
	"fmt"
	"strings"
)

// SplitHostPort splits addr into host and port. Unlike net.SplitHostPort, the
// port is optional: an addr with no colon is returned as (addr, "", nil).
func SplitHostPort(addr string) (host, port string, err error) {
	parts := strings.Split(addr, ":")
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("%s is not a valid address", addr)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%s is not a valid address", addr)
	}
}
