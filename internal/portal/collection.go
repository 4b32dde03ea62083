package portal

// Keyed is a record with a stable identity.
type Keyed interface {
	Key() string
}

// Collection is an ordered list of records in which every key appears at
// most once. It is not safe for concurrent use; views guard it with their
// own lock.
type Collection[T Keyed] struct {
	items []T
	index map[string]int
}

// NewCollection returns an empty collection.
func NewCollection[T Keyed]() *Collection[T] {
	return &Collection[T]{index: make(map[string]int)}
}

// Ingest appends item unless its key is already present, in which case the
// existing entry is kept. It reports whether item was added.
func (c *Collection[T]) Ingest(item T) bool {
	if c.Has(item.Key()) {
		return false
	}
	c.index[item.Key()] = len(c.items)
	c.items = append(c.items, item)
	return true
}

// ReplaceOrAppend drops any entry with item's key and appends item.
func (c *Collection[T]) ReplaceOrAppend(item T) {
	c.Remove(item.Key())
	c.Ingest(item)
}

// Prepend puts item first unless its key is already present.
func (c *Collection[T]) Prepend(item T) bool {
	if c.Has(item.Key()) {
		return false
	}
	c.items = append([]T{item}, c.items...)
	c.reindex()
	return true
}

// Reset replaces the contents with items. When items repeats a key the
// first occurrence wins.
func (c *Collection[T]) Reset(items []T) {
	c.items = make([]T, 0, len(items))
	c.index = make(map[string]int, len(items))
	for _, item := range items {
		c.Ingest(item)
	}
}

// Remove deletes the entry with key and reports whether one was present.
func (c *Collection[T]) Remove(key string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.reindex()
	return true
}

// Update applies fn to the entry with key in place. fn must not change the key.
func (c *Collection[T]) Update(key string, fn func(*T)) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	fn(&c.items[i])
	return true
}

// Get returns the entry with key.
func (c *Collection[T]) Get(key string) (T, bool) {
	i, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

func (c *Collection[T]) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Items returns a copy in collection order.
func (c *Collection[T]) Items() []T {
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) Len() int { return len(c.items) }

func (c *Collection[T]) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, item := range c.items {
		c.index[item.Key()] = i
	}
}
