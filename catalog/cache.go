package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/btree"
)

// Loader describes a table, *Reader is the production one
type Loader interface {
	Read(ctx context.Context, schema, table string) (*TableInfo, error)
}

// entry is a cached description keyed by SCHEMA.TABLE
type entry struct {
	key     string
	info    *TableInfo
	expires time.Time
}

// Cache keeps table descriptions ordered by SCHEMA.TABLE and reloads them
// once their TTL has passed. A zero TTL never expires entries.
type Cache struct {
	loader Loader
	ttl    time.Duration
	tables *btree.BTreeG[entry]
	now    func() time.Time

	// OnLookup, when set, is called with true on a hit and false on a miss
	OnLookup func(hit bool)
}

// NewCache creates a cache in front of loader
func NewCache(loader Loader, ttl time.Duration) *Cache {
	return &Cache{
		loader: loader,
		ttl:    ttl,
		tables: btree.NewBTreeG(func(a, b entry) bool {
			return a.key < b.key
		}),
		now: time.Now,
	}
}

// Get returns the description of schema.table, loading it on a miss
func (c *Cache) Get(ctx context.Context, schema, table string) (*TableInfo, error) {
	key := Key(schema, table)
	if e, ok := c.tables.Get(entry{key: key}); ok && (c.ttl == 0 || c.now().Before(e.expires)) {
		c.lookup(true)
		return e.info, nil
	}
	c.lookup(false)

	info, err := c.loader.Read(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	c.tables.Set(entry{key: key, info: info, expires: c.now().Add(c.ttl)})
	zerolog.Ctx(ctx).Debug().Msgf("+++ Cached [%v]", key)
	return info, nil
}

// Invalidate drops schema.table, the next Get reloads it
func (c *Cache) Invalidate(schema, table string) {
	c.tables.Delete(entry{key: Key(schema, table)})
}

// Tables lists the cached SCHEMA.TABLE keys in order, expired ones included
// until they are reloaded
func (c *Cache) Tables() []string {
	out := make([]string, 0, c.tables.Len())
	c.tables.Scan(func(e entry) bool {
		out = append(out, e.key)
		return true
	})
	return out
}

func (c *Cache) lookup(hit bool) {
	if c.OnLookup != nil {
		c.OnLookup(hit)
	}
}
