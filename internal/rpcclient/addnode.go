package rpcclient

import (
	"context"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

// AddNode asks the node to dial a new peer. The address is validated as
// a multiaddr locally so a typo fails before the round trip.
func (c *Client) AddNode(ctx context.Context, addr string) error {
	parsed, err := ma.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("invalid peer multiaddr %q: %w", addr, err)
	}
	var result bool
	return c.Call(ctx, "addNode", []interface{}{parsed.String()}, &result)
}
