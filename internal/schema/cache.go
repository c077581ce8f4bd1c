package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the children of a node from the live database. It is
// implemented by the driver layer; the cache never talks to a connection
// directly.
type Fetcher interface {
	FetchChildren(ctx context.Context, node Node) ([]Node, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, node Node) ([]Node, error)

func (f FetcherFunc) FetchChildren(ctx context.Context, node Node) ([]Node, error) {
	return f(ctx, node)
}

// FetchError is a cached, transient metadata fetch failure. Until the
// retry-after deadline passes, repeated lookups return the cached error
// instead of hammering a failing server. A user-triggered Invalidate
// clears it immediately.
type FetchError struct {
	Err   error
	Until time.Time
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("schema fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const (
	defaultRetryAfter = 15 * time.Second
	defaultTimeout    = 10 * time.Second
)

// Cache holds the discovered metadata tree for a single connection.
// Children are fetched lazily on first access and kept until invalidated.
// Concurrent fetches of the same node are deduplicated: at most one
// round-trip per node is outstanding, and every waiter shares its result.
type Cache struct {
	fetcher Fetcher
	group   singleflight.Group

	mu       sync.RWMutex
	nodes    map[string]Node
	children map[string][]string // key present means fetched (possibly empty)
	failed   map[string]*FetchError

	retryAfter time.Duration
	timeout    time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithRetryAfter sets how long a fetch failure is cached before the next
// access retries.
func WithRetryAfter(d time.Duration) Option {
	return func(c *Cache) { c.retryAfter = d }
}

// WithFetchTimeout bounds each metadata round-trip.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// NewCache creates an empty cache backed by the given fetcher.
func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:    fetcher,
		nodes:      map[string]Node{"": Root()},
		children:   make(map[string][]string),
		failed:     make(map[string]*FetchError),
		retryAfter: defaultRetryAfter,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Node returns the cached node at path.
func (c *Cache) Node(path string) (Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[path]
	return n, ok
}

// ParentOf resolves a node's parent through the cache. The parent
// reference is a path key, so the lookup cannot form an ownership cycle.
func (c *Cache) ParentOf(n Node) (Node, bool) {
	if n.Path == "" {
		return Node{}, false
	}
	return c.Node(n.Parent)
}

// Loaded reports whether the children of path have been fetched. A node
// fetched with zero children is loaded; a node never fetched is not.
func (c *Cache) Loaded(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.children[path]
	return ok
}

// Children returns the ordered children of the node at path, fetching
// them on first access. Leaf nodes have no children and trigger no fetch.
func (c *Cache) Children(ctx context.Context, path string) ([]Node, error) {
	c.mu.RLock()
	node, known := c.nodes[path]
	names, loaded := c.children[path]
	fail := c.failed[path]
	c.mu.RUnlock()

	if !known {
		return nil, fmt.Errorf("schema: unknown node %q", path)
	}
	if node.Leaf {
		return nil, nil
	}
	if loaded {
		return c.resolve(path, names), nil
	}
	if fail != nil {
		if time.Now().Before(fail.Until) {
			return nil, fail
		}
		c.mu.Lock()
		delete(c.failed, path)
		c.mu.Unlock()
	}

	// Deduplicate concurrent fetches for the same node: every caller
	// waits on the single in-flight round-trip.
	_, err, _ := c.group.Do(path, func() (any, error) {
		// Another caller may have completed the fetch while we queued.
		c.mu.RLock()
		_, done := c.children[path]
		c.mu.RUnlock()
		if done {
			return nil, nil
		}

		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		kids, ferr := c.fetcher.FetchChildren(fctx, node)
		if ferr != nil {
			// A cancelled context is not a server failure: waiters that
			// shared this flight retry immediately instead of sitting out
			// the retry-after window.
			if !errors.Is(ferr, context.Canceled) {
				c.mu.Lock()
				c.failed[path] = &FetchError{Err: ferr, Until: time.Now().Add(c.retryAfter)}
				c.mu.Unlock()
			}
			return nil, ferr
		}

		c.store(path, kids)
		return nil, nil
	})
	if err != nil {
		c.mu.RLock()
		fail = c.failed[path]
		c.mu.RUnlock()
		if fail != nil {
			return nil, fail
		}
		return nil, err
	}

	c.mu.RLock()
	names = c.children[path]
	c.mu.RUnlock()
	return c.resolve(path, names), nil
}

// store records a completed fetch, preserving child order.
func (c *Cache) store(path string, kids []Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(kids))
	for _, k := range kids {
		if k.Path == "" {
			k.Path = ChildPath(path, k.Name)
		}
		if k.Parent == "" && k.Path != "" {
			k.Parent = path
		}
		c.nodes[k.Path] = k
		names = append(names, k.Path)
	}
	c.children[path] = names
}

func (c *Cache) resolve(path string, names []string) []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, 0, len(names))
	for _, p := range names {
		if n, ok := c.nodes[p]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Invalidate discards the cached children of the node at path and of
// everything beneath it, so the next access re-fetches. Invalidating ""
// clears the entire tree. Cached fetch failures under path are cleared
// too.
func (c *Cache) Invalidate(path string) {
	c.group.Forget(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if path == "" {
		c.nodes = map[string]Node{"": Root()}
		c.children = make(map[string][]string)
		c.failed = make(map[string]*FetchError)
		return
	}

	prefix := path + "/"
	for p := range c.nodes {
		if strings.HasPrefix(p, prefix) {
			delete(c.nodes, p)
		}
	}
	for p := range c.children {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(c.children, p)
		}
	}
	for p := range c.failed {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(c.failed, p)
		}
	}
}

// FindByPrefix returns all cached nodes of the given kind whose name
// starts with prefix (case-insensitive). Results are ordered with exact
// name matches first, then shorter names, then alphabetically.
func (c *Cache) FindByPrefix(kind NodeKind, prefix string) []Node {
	lower := strings.ToLower(prefix)

	c.mu.RLock()
	var out []Node
	for _, n := range c.nodes {
		if n.Kind != kind {
			continue
		}
		if strings.HasPrefix(strings.ToLower(n.Name), lower) {
			out = append(out, n)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aExact := strings.EqualFold(a.Name, prefix)
		bExact := strings.EqualFold(b.Name, prefix)
		if aExact != bExact {
			return aExact
		}
		if len(a.Name) != len(b.Name) {
			return len(a.Name) < len(b.Name)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return out
}
