// Package cache provides the cache-aside wrapper used in front of repository reads.
//
// # Overview
//
// A Cacher joins three pieces:
//
//   - Store: a byte-level backend (see internal/cacheinfra for the sturdyc and Redis stores)
//   - Codec: msgpack by default, JSON as an alternative
//   - KeySerializer: builds stable keys from a method name and arguments
//
// Wrap, Wrap2 and Wrap3 turn a read function into a cached one:
//
//	findPrice := cache.Wrap(cacher, cache.Options{
//		TTL:     time.Minute,
//		KeyFunc: func(args ...any) string { return fmt.Sprintf("product:price:%v", args[0]) },
//	}, repo.lookupPrice)
//
//	price, err := findPrice(ctx, "Desk")
//
// # Keys
//
// Without Key or KeyFunc the key is Scope::Method::args, where each argument
// goes through the KeySerializer:
//
//   - Strings: quoted, so no string collides with nil or a separator
//   - Other basic types: type-tagged, e.g. int:5 or bool:true
//   - Types implementing encoding.TextMarshaler or fmt.Stringer: type name and quoted text
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs
//   - Structs: exported fields with name:value pairs
//   - Functions and channels: %p formatting, stable only within one process
//
// Keys longer than Config.MaxKeyLength keep the Scope::Method prefix and
// replace the argument part with an xxhash digest.
//
// # Presence
//
// Hits are decided by the store's present flag, never by the decoded value,
// so 0, "" and empty slices are served from the cache. Results that are nil
// are not stored and the next call runs the wrapped function again.
//
// # Failure handling
//
// A nil Cacher or one without a store calls straight through. Store and
// codec errors are logged at Warn, counted in Stats, and the wrapped
// function runs as if the entry were missing. Writes to the underlying data
// do not invalidate entries; readers may see values up to TTL old.
package cache
