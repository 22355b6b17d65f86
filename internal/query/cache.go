// Пакет query - кэш результатов запросов к backend.
// Ключ - кортеж строк, инвалидация по префиксу ключа.
// Кэшируются только успешные результаты (expirable LRU),
// одинаковые параллельные запросы объединяются (singleflight).
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Prometheus-метрики кэша запросов.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_query_cache_hits_total",
		Help: "Общее количество попаданий в кэш запросов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_query_cache_misses_total",
		Help: "Общее количество промахов кэша запросов.",
	})
)

// keySep разделяет элементы ключа во внутреннем представлении.
const keySep = "\x00"

// Key - ключ запроса, например Key{"files"} или Key{"a.pdf", "is-processed"}.
type Key []string

// String возвращает читаемое представление ключа (для логов).
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix проверяет, что ключ начинается с prefix.
// Пустой префикс соответствует любому ключу.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) id() string {
	return strings.Join(k, keySep)
}

func keyFromID(id string) Key {
	return Key(strings.Split(id, keySep))
}

// entry - закэшированный успешный результат.
type entry struct {
	value     any
	updatedAt time.Time
}

// flight - выполняющийся запрос. stale выставляется при инвалидации ключа:
// результат такого запроса отдаётся его вызывающим, но в кэш не попадает.
type flight struct {
	stale bool
}

// Client - кэш запросов. Безопасен для конкурентного использования.
type Client struct {
	mu       sync.Mutex
	entries  *expirable.LRU[string, entry]
	inflight map[string]*flight
	group    singleflight.Group

	subsMu  sync.Mutex
	subs    map[int]func(Key)
	nextSub int

	now func() time.Time
}

// NewClient создаёт кэш с указанным максимальным размером и временем жизни записи.
func NewClient(maxSize int, staleTime time.Duration) *Client {
	return &Client{
		entries:  expirable.NewLRU[string, entry](maxSize, nil, staleTime),
		inflight: make(map[string]*flight),
		subs:     make(map[int]func(Key)),
		now:      time.Now,
	}
}

// Fetch возвращает закэшированное значение ключа или выполняет fetcher.
// Конкурентные вызовы с одинаковым ключом выполняют fetcher один раз.
// Отмена ctx прерывает ожидание вызывающего, но не сам запрос:
// его результат получат остальные ожидающие.
func Fetch[T any](ctx context.Context, c *Client, key Key, fetcher func(context.Context) (T, error)) (T, error) {
	r := Query(ctx, c, key, fetcher)
	return r.Data, r.Err
}

// Query - то же, что Fetch, но возвращает Result со временем получения данных.
func Query[T any](ctx context.Context, c *Client, key Key, fetcher func(context.Context) (T, error)) Result[T] {
	id := key.id()

	c.mu.Lock()
	e, ok := c.entries.Get(id)
	c.mu.Unlock()
	if ok {
		if v, typed := e.value.(T); typed {
			cacheHitsTotal.Inc()
			return Result[T]{Data: v, UpdatedAt: e.updatedAt}
		}
	}
	cacheMissesTotal.Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		f := &flight{}
		c.mu.Lock()
		// Запрос мог завершиться между проверкой кэша и DoChan
		if cached, ok := c.entries.Get(id); ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.inflight[id] = f
		c.mu.Unlock()

		v, err := fetcher(fetchCtx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.inflight[id] == f {
			delete(c.inflight, id)
		}
		if err != nil {
			return nil, err
		}
		e := entry{value: v, updatedAt: c.now()}
		if !f.stale {
			c.entries.Add(id, e)
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		return Result[T]{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Result[T]{Err: res.Err}
		}
		e := res.Val.(entry)
		v, typed := e.value.(T)
		if !typed {
			return Result[T]{Err: fmt.Errorf("query %s: значение типа %T", key, e.value)}
		}
		return Result[T]{Data: v, UpdatedAt: e.updatedAt}
	}
}

// Invalidate удаляет все записи, ключ которых начинается с prefix.
// Выполняющиеся запросы с такими ключами не запишут результат в кэш,
// а новые вызовы Fetch не присоединятся к ним.
// Подписчики уведомляются синхронно до возврата.
func (c *Client) Invalidate(prefix Key) {
	c.mu.Lock()
	for _, id := range c.entries.Keys() {
		if keyFromID(id).HasPrefix(prefix) {
			c.entries.Remove(id)
		}
	}
	for id, f := range c.inflight {
		if keyFromID(id).HasPrefix(prefix) {
			f.stale = true
			delete(c.inflight, id)
			c.group.Forget(id)
		}
	}
	c.mu.Unlock()

	c.notify(prefix)
}

// peek возвращает закэшированное значение без запроса к backend.
func peek[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	e, ok := c.entries.Peek(key.id())
	c.mu.Unlock()

	var zero T
	if !ok {
		return zero, false
	}
	v, typed := e.value.(T)
	if !typed {
		return zero, false
	}
	return v, true
}

// Mutate выполняет fn и при успехе инвалидирует все keys.
// При ошибке кэш не меняется.
func Mutate[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error), keys ...Key) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	for _, k := range keys {
		c.Invalidate(k)
	}
	return v, nil
}

// Subscribe регистрирует обработчик инвалидаций.
// Обработчик вызывается синхронно из Invalidate с префиксом инвалидации.
// Возвращает функцию отписки.
func (c *Client) Subscribe(fn func(Key)) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Client) notify(prefix Key) {
	c.subsMu.Lock()
	subs := make([]func(Key), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(prefix)
	}
}

// size возвращает количество записей в кэше.
func (c *Client) size() int {
	return c.entries.Len()
}
