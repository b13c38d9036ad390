package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLCache 는 만료 시간과 최대 크기를 가진 LRU 캐시다.
// Set 은 만료를 갱신하고 Modify 는 기존 만료를 유지하므로 고정 구간 카운터로 쓸 수 있다.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	order   *list.List
	items   map[K]*list.Element
	now     func() time.Time
}

// NewTTLCache 는 만료 시간과 최대 크기를 갖는 TTLCache 를 생성한다.
func NewTTLCache[K comparable, V any](maxSize int, ttl time.Duration) *TTLCache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return &TTLCache[K, V]{
		ttl:     ttl,
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[K]*list.Element, min(maxSize, 1024)),
		now:     time.Now,
	}
}

// TTL 은 새 항목에 적용되는 만료 시간을 반환한다.
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get 은 만료되지 않은 값을 반환한다.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent := c.lookup(key); ent != nil {
		return ent.value, true
	}
	var zero V
	return zero, false
}

// Set 은 값을 저장하고 만료 시간을 갱신한다.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent := c.lookup(key); ent != nil {
		ent.value = value
		ent.expiresAt = c.now().Add(c.ttl)
		return
	}
	c.insert(key, value)
}

// Modify 는 현재 값을 fn 으로 갱신한다. 기존 항목의 만료 시간은 유지된다.
// fn 의 두 번째 인자는 만료되지 않은 항목이 있었는지 여부다.
func (c *TTLCache[K, V]) Modify(key K, fn func(current V, exists bool) V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent := c.lookup(key); ent != nil {
		ent.value = fn(ent.value, true)
		return ent.value, true
	}

	var zero V
	value := fn(zero, false)
	c.insert(key, value)
	return value, true
}

// Delete 는 항목을 제거한다.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		c.removeElement(element)
	}
}

// Len 은 만료 검사 전 항목 수를 반환한다.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTLCache[K, V]) lookup(key K) *entry[K, V] {
	element, ok := c.items[key]
	if !ok {
		return nil
	}
	ent := element.Value.(*entry[K, V])
	if c.now().After(ent.expiresAt) {
		c.removeElement(element)
		return nil
	}
	c.order.MoveToFront(element)
	return ent
}

func (c *TTLCache[K, V]) insert(key K, value V) {
	ent := &entry[K, V]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	c.items[key] = c.order.PushFront(ent)
	for len(c.items) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		c.removeElement(oldest)
	}
}

func (c *TTLCache[K, V]) removeElement(element *list.Element) {
	c.order.Remove(element)
	delete(c.items, element.Value.(*entry[K, V]).key)
}
