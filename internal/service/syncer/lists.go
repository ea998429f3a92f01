package syncer

import (
	"context"
	"sync"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// listCache memoizes list name resolution for the duration of one run
type listCache struct {
	client port.ListClient
	mu     sync.Mutex
	ids    map[string]string
}

func newListCache(client port.ListClient) *listCache {
	return &listCache{client: client, ids: make(map[string]string)}
}

func (c *listCache) resolve(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.ids[name]; ok {
		return id, nil
	}
	id, err := c.client.ResolveListID(ctx, name)
	if err != nil {
		return "", err
	}
	c.ids[name] = id
	return id, nil
}
