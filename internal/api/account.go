package api

import (
	"context"
	"fmt"
)

// GetAPIKeyInfo returns information about the configured API key. It is a
// cheap signed request used to check credentials before private streams are
// opened.
func (c *Client) GetAPIKeyInfo(ctx context.Context) (*APIKeyInfo, error) {
	var info APIKeyInfo
	if err := c.get(ctx, "/v5/user/query-api", nil, true, &info); err != nil {
		return nil, fmt.Errorf("get api key info: %w", err)
	}
	return &info, nil
}
