// =============================
// File: internal/cache/nonce.go
// =============================

// Package cache хранит durable nonce и address-lookup-таблицы между
// сделками. Оба кэша читаются из многих горутин торгового движка.
package cache

import (
	"errors"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrNonceUsed     = errors.New("nonce is used")
	ErrNonceNotReady = errors.New("nonce is not ready")
)

// NonceCache отслеживает один durable-nonce-аккаунт: текущее значение и
// флаг использования. Обновляет его внешний рефрешер через Update; сделка
// после подписи помечает значение через MarkUsed.
type NonceCache struct {
	account solana.PublicKey

	mu   sync.Mutex
	hash solana.Hash
	used bool
}

func NewNonceCache(account solana.PublicKey) *NonceCache {
	return &NonceCache{account: account}
}

// Account возвращает адрес nonce-аккаунта.
func (c *NonceCache) Account() solana.PublicKey { return c.account }

// Hash возвращает текущее значение nonce, пригодное как blockhash
// транзакции. Пока рефрешер не принёс значение, возвращает ErrNonceNotReady;
// после MarkUsed и до смены значения в сети ErrNonceUsed.
func (c *NonceCache) Hash() (solana.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hash == (solana.Hash{}) {
		return solana.Hash{}, ErrNonceNotReady
	}
	if c.used {
		return solana.Hash{}, ErrNonceUsed
	}
	return c.hash, nil
}

// MarkUsed помечает текущее значение использованным.
func (c *NonceCache) MarkUsed() {
	c.mu.Lock()
	c.used = true
	c.mu.Unlock()
}

// Update записывает значение из сети. Флаг used снимается только когда
// значение реально сменилось: совпадающий hash значит, что advance ещё
// не исполнился.
func (c *NonceCache) Update(hash solana.Hash) {
	c.mu.Lock()
	if c.hash != hash {
		c.hash = hash
		c.used = false
	}
	c.mu.Unlock()
}

// Лэйаут данных nonce-аккаунта системной программы (bincode, LE):
// Versions(u32) + State(u32) + authority(32) + durable nonce(32) +
// lamports_per_signature(u64).
type nonceAccountState struct {
	Version         uint32
	State           uint32
	Authority       solana.PublicKey
	Nonce           solana.Hash
	FeePerSignature uint64
}

const (
	nonceVersionCurrent   = 1
	nonceStateInitialized = 1
)

// ParseNonceHash извлекает durable nonce из сырых данных аккаунта.
func ParseNonceHash(data []byte) (solana.Hash, error) {
	var state nonceAccountState
	if err := bin.NewBinDecoder(data).Decode(&state); err != nil {
		return solana.Hash{}, fmt.Errorf("failed to decode nonce account: %w", err)
	}
	if state.Version != nonceVersionCurrent {
		return solana.Hash{}, fmt.Errorf("unsupported nonce account version %d", state.Version)
	}
	if state.State != nonceStateInitialized {
		return solana.Hash{}, errors.New("nonce account is not initialized")
	}
	return state.Nonce, nil
}
