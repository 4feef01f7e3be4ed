package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cacher combines a Store with the codec, key serializer and settings used
// by wrapped calls. A nil *Cacher, or one built without a store, is valid
// and disables caching.
type Cacher struct {
	store      Store
	codec      Codec
	serializer KeySerializer
	config     Config
	logger     *zap.Logger
	stats      *Stats
}

// Option configures a Cacher.
type Option func(*Cacher)

// WithCodec replaces the default msgpack codec.
func WithCodec(codec Codec) Option {
	return func(c *Cacher) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithKeySerializer replaces the reflection based serializer.
func WithKeySerializer(s KeySerializer) Option {
	return func(c *Cacher) {
		if s != nil {
			c.serializer = s
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Cacher) { c.config = cfg }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cacher) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Cacher over store. store may be nil.
func New(store Store, opts ...Option) (*Cacher, error) {
	c := &Cacher{
		store:      store,
		codec:      MsgpackCodec{},
		serializer: NewDefaultKeySerializer(),
		config:     DefaultConfig(),
		logger:     zap.NewNop(),
		stats:      newStats(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Enabled reports whether lookups reach a store.
func (c *Cacher) Enabled() bool {
	return c != nil && c.store != nil
}

func (c *Cacher) Config() Config {
	if c == nil {
		return DefaultConfig()
	}
	return c.config
}

func (c *Cacher) Stats() *Stats {
	if c == nil {
		return newStats()
	}
	return c.stats
}

// Key derives the default key for a call: scope, method and the serialized
// arguments joined by KeySeparator.
func (c *Cacher) Key(scope, method string, args ...any) string {
	prefix := method
	if scope != "" {
		prefix = scope + KeySeparator + method
	}
	serializer, limit := KeySerializer(reflectSerializer{}), DefaultConfig().MaxKeyLength
	if c != nil {
		serializer, limit = c.serializer, c.config.MaxKeyLength
	}
	return boundKey(prefix, serializer.SerializeKey(prefix, args...), limit)
}

// Delete drops key when the store supports it.
func (c *Cacher) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	d, ok := c.store.(Deleter)
	if !ok {
		return nil
	}
	return d.Delete(ctx, key)
}

// DeletePrefix drops every key starting with prefix when the store supports it.
func (c *Cacher) DeletePrefix(ctx context.Context, prefix string) error {
	if !c.Enabled() {
		return nil
	}
	d, ok := c.store.(PrefixDeleter)
	if !ok {
		return nil
	}
	return d.DeletePrefix(ctx, prefix)
}

// Get looks key up and decodes it into V. The bool reports presence.
func Get[V any](ctx context.Context, c *Cacher, key string) (V, bool, error) {
	var out V
	if !c.Enabled() {
		return out, false, nil
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return out, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if !ok {
		c.stats.misses.Inc()
		return out, false, nil
	}
	if err := c.codec.Unmarshal(data, &out); err != nil {
		var zero V
		return zero, false, fmt.Errorf("cache decode %q: %w", key, err)
	}
	c.stats.hits.Inc()
	return out, true, nil
}

// Set encodes value and stores it under key. A non-positive ttl uses
// Config.TTL.
func Set[V any](ctx context.Context, c *Cacher, key string, value V, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = c.config.TTL
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	c.stats.sets.Inc()
	return nil
}
