// =============================
// File: internal/trading/confirm.go
// =============================
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var errNotConfirmed = errors.New("transaction not confirmed yet")

// waitConfirmation опрашивает статус подписи до confirmed/finalized или
// до истечения confirmTimeout. Возвращает слот исполнения.
func (e *Engine) waitConfirmation(ctx context.Context, signature solana.Signature) (uint64, error) {
	operation := func() (uint64, error) {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, signature)
		if err != nil {
			return 0, err
		}
		if len(statuses) == 0 || statuses[0] == nil {
			return 0, errNotConfirmed
		}
		status := statuses[0]
		if status.Err != nil {
			return 0, backoff.Permanent(fmt.Errorf("transaction failed on-chain: %v", status.Err))
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return status.Slot, nil
		}
		return 0, errNotConfirmed
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(e.confirmTimeout),
	)
}
