// Package repositorycache provides a caching decorator for repository.Repository.
//
// # Overview
//
// CachedRepository wraps any repository.Repository[T] and routes its read
// methods through cache.Wrap. Write methods go straight to the base
// repository.
//
// # Basic Usage
//
//	base, _ := repository.New[Product](adapter)
//	cacher, _ := cache.New(store)
//
//	products := repositorycache.New[Product](base, cacher, repositorycache.WithTTL(time.Minute))
//
//	p, err := products.FindByID(ctx, "p-1")             // miss, then cached
//	page, err := products.FindWithPagination(ctx, nil, repository.PageRequest{Page: 2})
//
// # Cached vs Pass-through Operations
//
// Cached:
//   - FindByID, FindOne, Find
//   - FindWithPagination, FindWithCursor, FindWithSearch
//
// Pass-through:
//   - Create, Update, Delete
//
// # Keys
//
// Keys have the form scope::Method::args. The scope defaults to the
// snake_case name of T (Product -> product, OrderItem -> order_item) and
// can be replaced with WithScope. Arguments are serialized by the cacher's
// KeySerializer, so equal filters and page requests share an entry.
//
// # Staleness
//
// Writes do not invalidate cached reads. A record updated through the
// decorator can be served in its old form until the entry's TTL expires.
// Purge drops every entry of the scope when a caller needs fresh reads
// right away.
//
// # Error Handling
//
// Errors from the base repository are propagated unchanged and are never
// cached. Absent results (a nil entity from FindByID or FindOne) are not
// cached either, so a record created later is found on the next read.
// Cache backend failures are logged by the cacher and the call goes through
// to the base repository.
package repositorycache
