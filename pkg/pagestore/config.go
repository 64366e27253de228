package pagestore

// MinPageSize is the smallest page size this store accepts: page_size
// must be a positive multiple of MinPageSize.
const MinPageSize = 4096

// DefaultPageSize is a sensible choice for most workloads.
const DefaultPageSize = 4096

// DefaultQueueDepth bounds the background writer's in-flight queue when
// a caller doesn't specify one.
const DefaultQueueDepth = 256

// Config carries the construction-time options for Open. The zero value
// is not valid; use Default() or apply Options to it.
type Config struct {
	PageSize                uint32
	Readonly                bool
	DisableBackgroundWrites bool
	QueueDepth              int
	Cache                   *PageCache
}

// Default returns the baseline Config: 4096-byte pages, writable,
// background writes enabled, using the process-wide DefaultPageCache.
func Default() *Config {
	return &Config{
		PageSize:                DefaultPageSize,
		Readonly:                false,
		DisableBackgroundWrites: false,
		QueueDepth:              DefaultQueueDepth,
		Cache:                   DefaultPageCache,
	}
}

// Option configures a Config in place, in the functional-options style
// (Option interface + constructor functions) layered on top of a plain
// struct of settings.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithPageSize overrides the page size. It must be a positive multiple
// of MinPageSize; invalid values are caught by Open, not here, so that
// Option composition never itself needs to return an error.
func WithPageSize(size uint32) Option {
	return optionFunc(func(c *Config) { c.PageSize = size })
}

// WithReadonly marks the store readonly: Create, Write, and Commit will
// fail, and Open requires the file to already exist.
func WithReadonly() Option {
	return optionFunc(func(c *Config) { c.Readonly = true })
}

// WithoutBackgroundWrites forces synchronous commits and switches the
// before-evict policy for uncommitted pages from "queue to the
// background writer" to "cancel the eviction", since there is no writer
// to hand durability responsibility to.
func WithoutBackgroundWrites() Option {
	return optionFunc(func(c *Config) { c.DisableBackgroundWrites = true })
}

// WithQueueDepth overrides the background writer's bounded queue size.
func WithQueueDepth(depth int) Option {
	return optionFunc(func(c *Config) { c.QueueDepth = depth })
}

// WithCache overrides the shared PageCache instance a store registers
// with. Tests should supply a fresh cache rather than relying on the
// process-wide default.
func WithCache(cache *PageCache) Option {
	return optionFunc(func(c *Config) { c.Cache = cache })
}

// NewConfig builds a Config starting from Default() and applies opts in
// order.
func NewConfig(opts ...Option) *Config {
	c := Default()
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}
