// =============================
// File: internal/cache/lookup.go
// =============================
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	lookup "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TableFetcher загружает сырые данные lookup-таблицы из сети. Сужает
// RPC-клиент до единственного вызова, который нужен кэшу.
type TableFetcher func(ctx context.Context, address solana.PublicKey) ([]byte, error)

// LookupTableCache хранит распакованные адреса lookup-таблиц. Промах
// стоит сетевого запроса, поэтому параллельные промахи по одному адресу
// схлопываются в singleflight.
type LookupTableCache struct {
	fetch  TableFetcher
	logger *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	tables map[solana.PublicKey]solana.PublicKeySlice
}

func NewLookupTableCache(fetch TableFetcher, logger *zap.Logger) *LookupTableCache {
	return &LookupTableCache{
		fetch:  fetch,
		logger: logger.Named("lookup_cache"),
		tables: make(map[solana.PublicKey]solana.PublicKeySlice),
	}
}

// Put кладёт таблицу в кэш в обход сети.
func (c *LookupTableCache) Put(address solana.PublicKey, addresses solana.PublicKeySlice) {
	c.mu.Lock()
	c.tables[address] = addresses
	c.mu.Unlock()
}

// Get возвращает адреса таблицы, при промахе загружая и декодируя её.
// Ошибка загрузки отдаётся вызывающему; следующий Get попробует снова.
func (c *LookupTableCache) Get(ctx context.Context, address solana.PublicKey) (solana.PublicKeySlice, error) {
	c.mu.RLock()
	addrs, ok := c.tables[address]
	c.mu.RUnlock()
	if ok {
		return addrs, nil
	}

	v, err, _ := c.group.Do(address.String(), func() (any, error) {
		data, err := c.fetch(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch lookup table %s: %w", address, err)
		}
		state, err := lookup.DecodeAddressLookupTableState(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode lookup table %s: %w", address, err)
		}

		c.mu.Lock()
		c.tables[address] = state.Addresses
		c.mu.Unlock()

		c.logger.Debug("Lookup-таблица закэширована",
			zap.String("address", address.String()),
			zap.Int("addresses", len(state.Addresses)))
		return state.Addresses, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(solana.PublicKeySlice), nil
}

// Tables собирает карту таблиц для компиляции v0-сообщения.
func (c *LookupTableCache) Tables(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(addresses))
	for _, address := range addresses {
		addrs, err := c.Get(ctx, address)
		if err != nil {
			return nil, err
		}
		out[address] = addrs
	}
	return out, nil
}
