//go:build !appcore_embedded

package osapi

import (
	"errors"
	"fmt"
	"net/netip"
)

// AddressPolicy decides which destinations the network facet may reach.
type AddressPolicy struct {
	AllowPrivate  bool
	AllowLoopback bool
}

// Check returns a *BlockedError when ip is not reachable under the policy.
func (p AddressPolicy) Check(ip netip.Addr) error {
	ip = ip.Unmap()
	var reason string
	switch {
	case !ip.IsValid():
		reason = "invalid address"
	case ip.IsUnspecified():
		reason = "unspecified address"
	case ip.IsLoopback() && !p.AllowLoopback:
		reason = "loopback address"
	case ip.IsPrivate() && !p.AllowPrivate:
		reason = "private address"
	case (ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()) && !p.AllowPrivate:
		reason = "link-local address"
	case ip.IsMulticast() || ip.IsInterfaceLocalMulticast():
		reason = "multicast address"
	default:
		return nil
	}
	return &BlockedError{Address: ip.String(), Reason: reason}
}

// BlockedError is returned when the address policy rejects a destination.
type BlockedError struct {
	Address string
	Reason  string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("connection to %s blocked: %s", e.Address, e.Reason)
}

// IsBlocked reports whether err is a policy rejection.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}
