// =============================
// File: internal/swqos/swqos.go
// =============================

// Package swqos отправляет подписанные транзакции через ускорители
// (Jito, NextBlock, 0slot и другие) и обычный RPC. Каждый клиент знает
// свой эндпоинт, способ аутентификации и набор tip-аккаунтов; Racer
// рассылает транзакцию по всем клиентам и возвращает первый успех.
package swqos

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Service идентифицирует сервис доставки транзакций.
type Service uint8

const (
	ServiceDefault Service = iota // обычный RPC, без чаевых
	ServiceJito
	ServiceNextBlock
	ServiceZeroSlot
	ServiceTemporal
	ServiceBloxroute
	ServiceNode1
	ServiceFlashBlock
	ServiceBlockRazor
	ServiceAstralane

	serviceCount
)

var serviceNames = [serviceCount]string{
	"default", "jito", "nextblock", "0slot", "temporal",
	"bloxroute", "node1", "flashblock", "blockrazor", "astralane",
}

func (s Service) String() string {
	if s < serviceCount {
		return serviceNames[s]
	}
	return fmt.Sprintf("service(%d)", uint8(s))
}

// ParseService разбирает имя сервиса из конфига.
func ParseService(name string) (Service, bool) {
	for i, n := range serviceNames {
		if n == name {
			return Service(i), true
		}
	}
	return ServiceDefault, false
}

// RequiresTip сообщает, требует ли сервис перевод чаевых на свой
// tip-аккаунт. Верно для всех ускорителей, но не для обычного RPC.
func (s Service) RequiresTip() bool {
	return s != ServiceDefault && s < serviceCount
}

// RequiresAuth сообщает, нужен ли сервису токен. Jito принимает анонимные
// отправки, остальным ускорителям токен обязателен.
func (s Service) RequiresAuth() bool {
	return s.RequiresTip() && s != ServiceJito
}

// Client отправляет подписанные транзакции одному сервису.
type Client interface {
	// SendTransaction отправляет одну транзакцию и возвращает её подпись.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// SendTransactions отправляет пакет транзакций; ошибка любой из них
	// прерывает отправку остальных.
	SendTransactions(ctx context.Context, txs []*solana.Transaction) error
	// TipAccount возвращает случайный tip-аккаунт сервиса.
	TipAccount() (solana.PublicKey, error)
	Service() Service
	Endpoint() string
}

// Config описывает один сервис доставки из конфигурации.
type Config struct {
	Service   Service
	AuthToken string
	Region    Region
	// URL переопределяет региональную таблицу эндпоинтов.
	URL string
	// RateLimit ограничивает частоту отправок в секунду; 0 снимает лимит.
	RateLimit float64
}

// Endpoint выбирает эндпоинт: явный URL важнее региональной таблицы.
func (c Config) Endpoint() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	table, ok := serviceEndpoints[c.Service]
	if !ok {
		return "", fmt.Errorf("%w: service %s has no endpoint table and no url", types.ErrInvalidConfig, c.Service)
	}
	region := c.Region
	if region >= regionCount {
		region = RegionDefault
	}
	return table[region], nil
}

// Общий транспорт всех клиентов: один пул соединений на процесс.
var sharedTransport = &http.Transport{
	MaxIdleConns:        256,
	MaxIdleConnsPerHost: 64,
	IdleConnTimeout:     90 * time.Second,
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout: 5 * time.Second,
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: sharedTransport,
		Timeout:   10 * time.Second,
	}
}

// NewClient собирает клиента по конфигу. Для Default-сервиса нужен URL
// RPC-ноды; ускорителям достаточно региона.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	if cfg.Service >= serviceCount {
		return nil, fmt.Errorf("%w: unknown swqos service %d", types.ErrInvalidConfig, uint8(cfg.Service))
	}
	if cfg.Service == ServiceDefault && cfg.URL == "" {
		return nil, fmt.Errorf("%w: default service requires rpc url", types.ErrInvalidConfig)
	}
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	c := &httpClient{
		service:   cfg.Service,
		endpoint:  endpoint,
		authToken: cfg.AuthToken,
		http:      newHTTPClient(),
		limiter:   limiter,
		logger:    logger.Named("swqos").With(zap.String("service", cfg.Service.String())),
	}
	return c, nil
}

// randomTip выбирает случайный аккаунт из tip-таблицы сервиса.
func randomTip(s Service) (solana.PublicKey, error) {
	accounts := tipAccounts[s]
	if len(accounts) == 0 {
		return solana.PublicKey{}, fmt.Errorf("service %s has no tip accounts", s)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(accounts))))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to pick tip account: %w", err)
	}
	return accounts[n.Int64()], nil
}
