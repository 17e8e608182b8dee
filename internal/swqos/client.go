// =============================
// File: internal/swqos/client.go
// =============================
package swqos

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// httpClient шлёт sendTransaction как JSON-RPC поверх HTTP. Формат тела
// одинаков для RPC-нод и ускорителей, различаются только URL и способ
// передачи токена.
type httpClient struct {
	service   Service
	endpoint  string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

// submitURL достраивает путь и query-аутентификацию под сервис.
func (c *httpClient) submitURL() string {
	switch c.service {
	case ServiceJito:
		u := c.endpoint + "/api/v1/transactions"
		if c.authToken != "" {
			u += "?uuid=" + url.QueryEscape(c.authToken)
		}
		return u
	case ServiceZeroSlot, ServiceNode1:
		if c.authToken != "" {
			return c.endpoint + "/?api-key=" + url.QueryEscape(c.authToken)
		}
		return c.endpoint
	case ServiceTemporal:
		if c.authToken != "" {
			return c.endpoint + "/?c=" + url.QueryEscape(c.authToken)
		}
		return c.endpoint
	default:
		return c.endpoint
	}
}

// setAuth выставляет заголовок аутентификации там, где сервис ждёт его
// в заголовке, а не в query.
func (c *httpClient) setAuth(req *http.Request) {
	if c.authToken == "" {
		return
	}
	switch c.service {
	case ServiceJito:
		req.Header.Set("x-jito-auth", c.authToken)
	case ServiceNextBlock, ServiceBloxroute, ServiceFlashBlock:
		req.Header.Set("Authorization", c.authToken)
	case ServiceBlockRazor:
		req.Header.Set("apikey", c.authToken)
	case ServiceAstralane:
		req.Header.Set("api_key", c.authToken)
	}
}

func (c *httpClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("transaction is not signed")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return solana.Signature{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	opts := map[string]any{"encoding": "base64"}
	if c.service == ServiceDefault {
		opts["skipPreflight"] = true
		opts["preflightCommitment"] = "processed"
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params:  []any{base64.StdEncoding.EncodeToString(raw), opts},
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode request: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL(), bytes.NewReader(body))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return solana.Signature{}, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(payload, 256))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return solana.Signature{}, rpcResp.Error
	}

	sig := tx.Signatures[0]
	c.logger.Debug("Транзакция отправлена",
		zap.String("endpoint", c.endpoint),
		zap.String("signature", sig.String()),
		zap.Duration("elapsed", time.Since(start)))
	return sig, nil
}

func (c *httpClient) SendTransactions(ctx context.Context, txs []*solana.Transaction) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, tx := range txs {
		g.Go(func() error {
			_, err := c.SendTransaction(ctx, tx)
			return err
		})
	}
	return g.Wait()
}

func (c *httpClient) TipAccount() (solana.PublicKey, error) {
	return randomTip(c.service)
}

func (c *httpClient) Service() Service { return c.service }

func (c *httpClient) Endpoint() string { return c.endpoint }

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
