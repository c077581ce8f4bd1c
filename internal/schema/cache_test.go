package schema

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// treeFetcher serves a fixed tree and counts fetches per path.
type treeFetcher struct {
	mu    sync.Mutex
	tree  map[string][]Node
	calls map[string]int
	delay time.Duration
	fail  map[string]error
}

func newTreeFetcher() *treeFetcher {
	root := Root()
	sales := root.Child(KindDatabase, "sales")
	dbo := sales.Child(KindSchema, "dbo")
	orders := dbo.Child(KindTable, "Orders")
	return &treeFetcher{
		tree: map[string][]Node{
			"":          {sales},
			"sales":     {dbo},
			"sales/dbo": {orders, dbo.Child(KindView, "OrderSummary")},
			"sales/dbo/Orders": {
				{Path: "sales/dbo/Orders/OrderID", Parent: "sales/dbo/Orders", Kind: KindColumn, Name: "OrderID", Detail: "int", Leaf: true},
				{Path: "sales/dbo/Orders/Total", Parent: "sales/dbo/Orders", Kind: KindColumn, Name: "Total", Detail: "decimal", Leaf: true},
			},
		},
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (f *treeFetcher) FetchChildren(ctx context.Context, node Node) ([]Node, error) {
	f.mu.Lock()
	f.calls[node.Path]++
	err := f.fail[node.Path]
	kids := f.tree[node.Path]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return kids, nil
}

func (f *treeFetcher) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func TestChildrenLazyFetch(t *testing.T) {
	f := newTreeFetcher()
	c := NewCache(f)

	if f.callCount("") != 0 {
		t.Fatal("fetch before first access")
	}

	dbs, err := c.Children(context.Background(), "")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(dbs) != 1 || dbs[0].Name != "sales" {
		t.Fatalf("got %v, want [sales]", dbs)
	}

	// Second access is served from cache.
	if _, err := c.Children(context.Background(), ""); err != nil {
		t.Fatalf("cached Children: %v", err)
	}
	if got := f.callCount(""); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
}

func TestChildrenLeafNoFetch(t *testing.T) {
	f := newTreeFetcher()
	c := NewCache(f)
	ctx := context.Background()

	for _, p := range []string{"", "sales", "sales/dbo", "sales/dbo/Orders"} {
		if _, err := c.Children(ctx, p); err != nil {
			t.Fatalf("Children(%q): %v", p, err)
		}
	}

	kids, err := c.Children(ctx, "sales/dbo/Orders/OrderID")
	if err != nil {
		t.Fatalf("leaf Children: %v", err)
	}
	if kids != nil {
		t.Fatalf("leaf children = %v, want nil", kids)
	}
	if got := f.callCount("sales/dbo/Orders/OrderID"); got != 0 {
		t.Fatalf("leaf fetch count = %d, want 0", got)
	}
}

func TestChildrenConcurrentDedup(t *testing.T) {
	f := newTreeFetcher()
	f.delay = 20 * time.Millisecond
	c := NewCache(f)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kids, err := c.Children(context.Background(), "")
			if err != nil || len(kids) != 1 {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d concurrent calls failed", failures.Load())
	}
	if got := f.callCount(""); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
}

func TestLoadedDistinguishesEmptyFromUnfetched(t *testing.T) {
	f := newTreeFetcher()
	f.tree["sales"] = nil // database with no schemas
	c := NewCache(f)

	if c.Loaded("sales") {
		t.Fatal("unfetched node reported loaded")
	}
	if _, err := c.Children(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	kids, err := c.Children(context.Background(), "sales")
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 0 {
		t.Fatalf("got %v, want empty", kids)
	}
	if !c.Loaded("sales") {
		t.Fatal("fetched-empty node not reported loaded")
	}
}

func TestFetchFailureCachedUntilRetryAfter(t *testing.T) {
	f := newTreeFetcher()
	boom := errors.New("timeout contacting server")
	f.fail[""] = boom
	c := NewCache(f, WithRetryAfter(30*time.Millisecond))

	_, err := c.Children(context.Background(), "")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("FetchError does not wrap cause")
	}

	// Within the retry window the cached failure is returned without a
	// new round-trip.
	if _, err := c.Children(context.Background(), ""); !errors.As(err, &fe) {
		t.Fatalf("err = %v, want cached *FetchError", err)
	}
	if got := f.callCount(""); got != 1 {
		t.Fatalf("fetch count during backoff = %d, want 1", got)
	}

	// After the window the fetch is retried and can succeed.
	time.Sleep(40 * time.Millisecond)
	f.mu.Lock()
	delete(f.fail, "")
	f.mu.Unlock()

	kids, err := c.Children(context.Background(), "")
	if err != nil {
		t.Fatalf("retry after backoff: %v", err)
	}
	if len(kids) != 1 {
		t.Fatalf("got %v, want [sales]", kids)
	}
}

func TestCancelledFetchNotCachedAsFailure(t *testing.T) {
	f := newTreeFetcher()
	f.delay = 50 * time.Millisecond
	c := NewCache(f, WithRetryAfter(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Children(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled fetch: err = %v, want context.Canceled", err)
	}

	// The next caller retries immediately rather than waiting out the
	// failure backoff.
	f.mu.Lock()
	f.delay = 0
	f.mu.Unlock()

	dbs, err := c.Children(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch after cancel: %v", err)
	}
	if len(dbs) != 1 || dbs[0].Name != "sales" {
		t.Fatalf("fetch after cancel: got %v, want [sales]", dbs)
	}
}

func TestInvalidateRecursive(t *testing.T) {
	f := newTreeFetcher()
	c := NewCache(f)
	ctx := context.Background()

	for _, p := range []string{"", "sales", "sales/dbo", "sales/dbo/Orders"} {
		if _, err := c.Children(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	c.Invalidate("sales")

	if c.Loaded("sales") || c.Loaded("sales/dbo") || c.Loaded("sales/dbo/Orders") {
		t.Fatal("descendants still loaded after Invalidate")
	}
	// The node itself survives; only its subtree contents are gone.
	if _, ok := c.Node("sales"); !ok {
		t.Fatal("invalidated node evicted from tree")
	}
	if _, ok := c.Node("sales/dbo"); ok {
		t.Fatal("descendant node survived Invalidate")
	}

	// Re-fetch works and hits the fetcher again.
	if _, err := c.Children(ctx, "sales"); err != nil {
		t.Fatal(err)
	}
	if got := f.callCount("sales"); got != 2 {
		t.Fatalf("fetch count after invalidate = %d, want 2", got)
	}
}

func TestInvalidateAll(t *testing.T) {
	f := newTreeFetcher()
	c := NewCache(f)
	ctx := context.Background()

	if _, err := c.Children(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Children(ctx, "sales"); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("")

	if c.Loaded("") || c.Loaded("sales") {
		t.Fatal("cache still loaded after full invalidation")
	}
	if _, ok := c.Node(""); !ok {
		t.Fatal("root missing after full invalidation")
	}
	if _, ok := c.Node("sales"); ok {
		t.Fatal("stale node survived full invalidation")
	}
}

func TestInvalidateClearsFailure(t *testing.T) {
	f := newTreeFetcher()
	f.fail[""] = errors.New("transient")
	c := NewCache(f, WithRetryAfter(time.Hour))

	if _, err := c.Children(context.Background(), ""); err == nil {
		t.Fatal("expected failure")
	}

	f.mu.Lock()
	delete(f.fail, "")
	f.mu.Unlock()
	c.Invalidate("")

	// Invalidate bypasses the retry-after window.
	if _, err := c.Children(context.Background(), ""); err != nil {
		t.Fatalf("fetch after invalidate: %v", err)
	}
}

func TestFindByPrefixRanking(t *testing.T) {
	f := newTreeFetcher()
	root := Root()
	db := root.Child(KindDatabase, "app")
	f.tree[""] = []Node{db}
	f.tree["app"] = []Node{
		db.Child(KindTable, "OrderItems"),
		db.Child(KindTable, "Orders"),
		db.Child(KindTable, "Order"),
		db.Child(KindTable, "Customers"),
		db.Child(KindView, "OrderTotals"),
	}
	c := NewCache(f)
	ctx := context.Background()
	if _, err := c.Children(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Children(ctx, "app"); err != nil {
		t.Fatal(err)
	}

	got := c.FindByPrefix(KindTable, "order")
	want := []string{"Order", "Orders", "OrderItems"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("result[%d] = %q, want %q", i, got[i].Name, name)
		}
	}

	// Kind filter excludes the view.
	for _, n := range got {
		if n.Kind != KindTable {
			t.Errorf("result %q has kind %v", n.Name, n.Kind)
		}
	}

	if res := c.FindByPrefix(KindTable, "zz"); len(res) != 0 {
		t.Fatalf("no-match prefix returned %v", res)
	}
}

func TestChildrenUnknownNode(t *testing.T) {
	c := NewCache(newTreeFetcher())
	if _, err := c.Children(context.Background(), "nope/missing"); err == nil {
		t.Fatal("expected error for unknown path")
	}
}
