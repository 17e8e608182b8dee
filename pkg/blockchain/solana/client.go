// pkg/blockchain/solana/client.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client даёт узкую RPC-поверхность, которую потребляют движок и кэши.
// Каждый вызов берёт следующую ноду из круговорота пула.
type Client struct {
	pool   *RPCPool
	logger *zap.Logger
}

// NewClient создает новый экземпляр клиента Solana
func NewClient(rpcList []string, logger *zap.Logger) (*Client, error) {
	if len(rpcList) == 0 {
		return nil, errors.New("empty RPC list")
	}

	for _, rpcURL := range rpcList {
		u, err := url.Parse(rpcURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid RPC URL: %s", rpcURL)
		}
	}

	return &Client{
		pool:   NewRPCPool(rpcList),
		logger: logger.Named("rpc"),
	}, nil
}

// Ping проверяет доступность хотя бы одной ноды пула.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.pool.GetClient().GetLatestBlockhash(ctx, rpc.CommitmentFinalized); err != nil {
		return fmt.Errorf("rpc ping failed: %w", err)
	}
	return nil
}

// SendTransaction отправляет подписанную транзакцию без preflight:
// результат проверяется подтверждением, а не симуляцией.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.pool.GetClient().SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		c.logger.Error("Ошибка отправки транзакции", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetLatestBlockhash возвращает свежий blockhash для подписи.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.pool.GetClient().GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("Ошибка получения blockhash", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetSignatureStatuses возвращает статусы подписей в порядке запроса;
// неизвестной подписи соответствует nil.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]*rpc.SignatureStatusesResult, error) {
	result, err := c.pool.GetClient().GetSignatureStatuses(ctx, true, signatures...)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature statuses: %w", err)
	}
	return result.Value, nil
}

// GetBalance возвращает баланс аккаунта в лампортах.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.pool.GetClient().GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return result.Value, nil
}

// GetTokenAccountBalance возвращает остаток токен-аккаунта в сырых
// единицах mint'а.
func (c *Client) GetTokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	result, err := c.pool.GetClient().GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get token balance: %w", err)
	}
	if result.Value == nil {
		return 0, errors.New("token account has no balance data")
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token amount %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

// GetAccountInfo возвращает аккаунт на confirmed-коммитменте.
func (c *Client) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	result, err := c.pool.GetClient().GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", account, err)
	}
	if result.Value == nil {
		return nil, fmt.Errorf("account %s not found", account)
	}
	return result.Value, nil
}

// GetAccountData возвращает сырые данные аккаунта в форме, которую ждут
// кэши nonce и lookup-таблиц.
func (c *Client) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	acc, err := c.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, err
	}
	data := acc.Data.GetBinary()
	if len(data) == 0 {
		return nil, fmt.Errorf("account %s has no data", account)
	}
	return data, nil
}
