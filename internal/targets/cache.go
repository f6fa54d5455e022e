package targets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinywideclouds/go-pushbullet-service/internal/platform/pushbullet"
)

// Lister defines the provider calls a refresh needs.
type Lister interface {
	Devices(ctx context.Context) ([]pushbullet.Device, error)
	Channels(ctx context.Context) ([]pushbullet.Channel, error)
}

// Cache maps lowercased device nicknames and channel tags to recipients.
// It is rebuilt wholesale by Refresh and safe for concurrent use.
type Cache struct {
	lister Lister
	logger *slog.Logger

	mu          sync.RWMutex
	entries     map[Kind]map[string]Recipient
	refreshedAt time.Time
}

func NewCache(lister Lister, logger *slog.Logger) *Cache {
	return &Cache{
		lister:  lister,
		logger:  logger.With("component", "TargetCache"),
		entries: emptyEntries(),
	}
}

func emptyEntries() map[Kind]map[string]Recipient {
	return map[Kind]map[string]Recipient{
		KindDevice:  {},
		KindChannel: {},
	}
}

// Refresh re-lists devices and channels and replaces the cache. On error the
// previous contents are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	devices, err := c.lister.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	channels, err := c.lister.Channels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	next := emptyEntries()
	for _, d := range devices {
		// Deleted devices stay listed as inactive and have no nickname.
		if !d.Active || d.Nickname == "" {
			continue
		}
		next[KindDevice][strings.ToLower(d.Nickname)] = Device(d.Iden, d.Nickname)
	}
	for _, ch := range channels {
		if ch.Tag == "" {
			continue
		}
		next[KindChannel][strings.ToLower(ch.Tag)] = Channel(ch.Tag)
	}

	c.mu.Lock()
	c.entries = next
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug("Target cache refreshed", "devices", len(next[KindDevice]), "channels", len(next[KindChannel]))
	return nil
}

// Lookup finds a recipient by kind and case-insensitive name.
func (c *Cache) Lookup(kind Kind, name string) (Recipient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[kind][strings.ToLower(name)]
	return r, ok
}

// Snapshot is a point-in-time listing of the cache.
type Snapshot struct {
	Devices     []string  `json:"devices"`
	Channels    []string  `json:"channels"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Devices:     sortedKeys(c.entries[KindDevice]),
		Channels:    sortedKeys(c.entries[KindChannel]),
		RefreshedAt: c.refreshedAt,
	}
}

func sortedKeys(m map[string]Recipient) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
