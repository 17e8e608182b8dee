// =============================
// File: internal/trading/engine_test.go
// =============================
package trading

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/cache"
	"github.com/rovshanmuradov/soltrade/internal/dex"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumamm"
	"github.com/rovshanmuradov/soltrade/internal/middleware"
	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/swqos"
	"github.com/rovshanmuradov/soltrade/internal/types"
	"github.com/rovshanmuradov/soltrade/internal/wallet"
)

// fakeRPC отдаёт заранее заданные ответы и считает обращения.
type fakeRPC struct {
	mu sync.Mutex

	blockhash      solana.Hash
	blockhashErr   error
	blockhashCalls int

	// statuses хранит очередь ответов getSignatureStatuses; последний
	// элемент повторяется после исчерпания очереди.
	statuses    []*rpc.SignatureStatusesResult
	statusCalls int

	tokenBalance uint64
	tokenErr     error

	accountData map[solana.PublicKey][]byte
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	return f.blockhash, f.blockhashErr
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]*rpc.SignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) == 0 {
		return []*rpc.SignatureStatusesResult{nil}, nil
	}
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return []*rpc.SignatureStatusesResult{status}, nil
}

func (f *fakeRPC) GetTokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenBalance, f.tokenErr
}

func (f *fakeRPC) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.accountData[account]
	if !ok {
		return nil, fmt.Errorf("account %s not found", account)
	}
	return data, nil
}

// fakeDelivery притворяется сервисом доставки и запоминает транзакции.
type fakeDelivery struct {
	service  swqos.Service
	endpoint string
	tip      solana.PublicKey
	err      error

	mu   sync.Mutex
	sent []*solana.Transaction
}

func (f *fakeDelivery) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.mu.Unlock()
	if f.err != nil {
		return solana.Signature{}, f.err
	}
	return tx.Signatures[0], nil
}

func (f *fakeDelivery) SendTransactions(ctx context.Context, txs []*solana.Transaction) error {
	for _, tx := range txs {
		if _, err := f.SendTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDelivery) TipAccount() (solana.PublicKey, error) { return f.tip, nil }
func (f *fakeDelivery) Service() swqos.Service                { return f.service }
func (f *fakeDelivery) Endpoint() string                      { return f.endpoint }

// captured дожидается единственной отправленной транзакции: гонка
// возвращается по первому успеху, проигравший может ещё досылать.
func (f *fakeDelivery) captured(t *testing.T) *solana.Transaction {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.sent) == 1
	}, time.Second, 5*time.Millisecond, "транзакция не дошла до %s", f.endpoint)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[0]
}

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := wallet.New(key.String())
	require.NoError(t, err)
	return w
}

func newTestEngine(t *testing.T, frpc *fakeRPC, clients []swqos.Client, tune func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		Wallet:   testWallet(t),
		RPC:      frpc,
		Registry: dex.NewRegistry(zap.NewNop()),
		Racer:    swqos.NewRacer(clients, zap.NewNop()),
		Logger:   zap.NewNop(),
	}
	if tune != nil {
		tune(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

// wsolPool строит пул WSOL/токен: 85 SOL против 500M токенов с шестью
// знаками.
func wsolPool(mint solana.PublicKey) *raydiumamm.Params {
	return &raydiumamm.Params{
		Amm:         solana.NewWallet().PublicKey(),
		CoinMint:    spl.WSOLMint,
		PcMint:      mint,
		CoinVault:   solana.NewWallet().PublicKey(),
		PcVault:     solana.NewWallet().PublicKey(),
		CoinReserve: 85_000_000_000,
		PcReserve:   500_000_000_000_000,
	}
}

func buyRequest(mint solana.PublicKey) *types.TradeRequest {
	return &types.TradeRequest{
		Protocol:    types.ProtocolRaydiumAmmV4,
		Mint:        mint,
		AmountIn:    types.SolToLamports(0.5),
		SlippageBps: 500,
		Params:      wsolPool(mint),
	}
}

// decodedIx хранит скомпилированную инструкцию с разрешёнными аккаунтами.
type decodedIx struct {
	program  solana.PublicKey
	accounts []solana.PublicKey
	data     []byte
}

func decodeMessage(t *testing.T, tx *solana.Transaction) []decodedIx {
	t.Helper()
	require.NotNil(t, tx)
	out := make([]decodedIx, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		program, err := tx.Message.Program(ix.ProgramIDIndex)
		require.NoError(t, err)
		accounts := make([]solana.PublicKey, 0, len(ix.Accounts))
		for _, idx := range ix.Accounts {
			account, err := tx.Message.Account(idx)
			require.NoError(t, err)
			accounts = append(accounts, account)
		}
		out = append(out, decodedIx{program: program, accounts: accounts, data: []byte(ix.Data)})
	}
	return out
}

func findByProgram(t *testing.T, ixs []decodedIx, program solana.PublicKey) decodedIx {
	t.Helper()
	for _, ix := range ixs {
		if ix.program.Equals(program) {
			return ix
		}
	}
	t.Fatalf("инструкция программы %s не найдена", program)
	return decodedIx{}
}

func TestEngineBuyInstructionOrder(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	jitoTip := solana.NewWallet().PublicKey()
	jito := &fakeDelivery{service: swqos.ServiceJito, endpoint: "https://jito.test", tip: jitoTip}
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	frpc := &fakeRPC{blockhash: solana.Hash{0xAA}}
	e := newTestEngine(t, frpc, []swqos.Client{jito, direct}, nil)

	res, err := e.Buy(context.Background(), buyRequest(mint))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Confirmed)
	assert.NotZero(t, res.Elapsed)

	jitoTx := jito.captured(t)
	directTx := direct.captured(t)

	// Ускоритель: data-size, price, limit, createATA, swap, чаевые.
	accel := decodeMessage(t, jitoTx)
	require.Len(t, accel, 6)

	assert.Equal(t, computebudget.ProgramID, accel[0].program)
	assert.Equal(t, byte(4), accel[0].data[0])
	assert.Equal(t, uint32(256*1024), binary.LittleEndian.Uint32(accel[0].data[1:5]))

	assert.Equal(t, computebudget.ProgramID, accel[1].program)
	assert.Equal(t, byte(3), accel[1].data[0])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(accel[1].data[1:9]))

	assert.Equal(t, computebudget.ProgramID, accel[2].program)
	assert.Equal(t, byte(2), accel[2].data[0])
	assert.Equal(t, uint32(190_000), binary.LittleEndian.Uint32(accel[2].data[1:5]))

	assert.Equal(t, spl.AssociatedTokenProgramID, accel[3].program)

	assert.Equal(t, raydiumamm.ProgramID, accel[4].program)
	assert.Equal(t, byte(9), accel[4].data[0])
	assert.Equal(t, types.SolToLamports(0.5), binary.LittleEndian.Uint64(accel[4].data[1:9]))

	tipIx := accel[5]
	assert.Equal(t, solana.SystemProgramID, tipIx.program)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(tipIx.data[0:4]))
	assert.Equal(t, types.SolToLamports(0.001), binary.LittleEndian.Uint64(tipIx.data[4:12]))
	require.Len(t, tipIx.accounts, 2)
	assert.Equal(t, jitoTip, tipIx.accounts[1])

	// Прямой RPC: тот же набор с RPC-бюджетом и без чаевых.
	plain := decodeMessage(t, directTx)
	require.Len(t, plain, 5)
	assert.Equal(t, byte(4), plain[0].data[0])
	assert.Equal(t, uint64(500_000), binary.LittleEndian.Uint64(plain[1].data[1:9]))
	assert.Equal(t, uint32(500_000), binary.LittleEndian.Uint32(plain[2].data[1:5]))
	assert.Equal(t, raydiumamm.ProgramID, plain[4].program)

	// Каждый клиент получает собственный экземпляр со свежим blockhash.
	assert.NotSame(t, jitoTx, directTx)
	for _, tx := range []*solana.Transaction{jitoTx, directTx} {
		assert.Equal(t, frpc.blockhash, tx.Message.RecentBlockhash)
		require.Len(t, tx.Signatures, 1)
		assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
	}
}

func TestEngineSellShape(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	tip := solana.NewWallet().PublicKey()
	jito := &fakeDelivery{service: swqos.ServiceJito, endpoint: "https://jito.test", tip: tip}

	frpc := &fakeRPC{blockhash: solana.Hash{0xBB}}
	nonce := cache.NewNonceCache(solana.NewWallet().PublicKey())
	nonce.Update(solana.Hash{0xCC})
	e := newTestEngine(t, frpc, []swqos.Client{jito}, func(o *Options) { o.Nonce = nonce })

	req := buyRequest(mint)
	req.AmountIn = 1_000_000 // токены
	req.UseNonce = true      // на продаже не действует

	_, err := e.Sell(context.Background(), req)
	require.NoError(t, err)

	// Продажа идёт без data-size лимита и без advance: price, limit,
	// createWSOL, swap, чаевые.
	tx := jito.captured(t)
	ixs := decodeMessage(t, tx)
	require.Len(t, ixs, 5)
	assert.Equal(t, byte(3), ixs[0].data[0])
	assert.Equal(t, byte(2), ixs[1].data[0])
	assert.Equal(t, spl.AssociatedTokenProgramID, ixs[2].program)
	assert.Equal(t, raydiumamm.ProgramID, ixs[3].program)
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(ixs[3].data[1:9]))

	// Чаевые продажи берутся из плоского sell_tip_fee.
	assert.Equal(t, types.SolToLamports(0.0001), binary.LittleEndian.Uint64(ixs[4].data[4:12]))

	// Blockhash свежий, nonce остался нетронутым.
	assert.Equal(t, frpc.blockhash, tx.Message.RecentBlockhash)
	assert.Equal(t, 1, frpc.blockhashCalls)
	_, err = nonce.Hash()
	assert.NoError(t, err)
}

func TestEngineBuyDurableNonce(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	frpc := &fakeRPC{blockhash: solana.Hash{0xAA}}
	nonceAccount := solana.NewWallet().PublicKey()
	nc := cache.NewNonceCache(nonceAccount)
	nonceHash := solana.Hash{0xDD, 0x01}
	nc.Update(nonceHash)

	e := newTestEngine(t, frpc, []swqos.Client{direct}, func(o *Options) { o.Nonce = nc })

	req := buyRequest(mint)
	req.UseNonce = true
	_, err := e.Buy(context.Background(), req)
	require.NoError(t, err)

	tx := direct.captured(t)
	assert.Equal(t, nonceHash, tx.Message.RecentBlockhash)
	assert.Zero(t, frpc.blockhashCalls) // свежий blockhash не запрашивался

	ixs := decodeMessage(t, tx)
	require.Len(t, ixs, 6)
	adv := ixs[0]
	assert.Equal(t, solana.SystemProgramID, adv.program)
	require.Len(t, adv.data, 4)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(adv.data))
	require.Len(t, adv.accounts, 3)
	assert.Equal(t, nonceAccount, adv.accounts[0])
	assert.Equal(t, solana.SysVarRecentBlockHashesPubkey, adv.accounts[1])
	assert.Equal(t, e.wallet.PublicKey, adv.accounts[2])

	// Победа гонки потребляет nonce до следующего Update.
	_, err = nc.Hash()
	assert.ErrorIs(t, err, cache.ErrNonceUsed)
}

func nonceAccountBytes(authority solana.PublicKey, hash solana.Hash) []byte {
	data := make([]byte, 80)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	binary.LittleEndian.PutUint32(data[4:8], 1)
	copy(data[8:40], authority[:])
	copy(data[40:72], hash[:])
	binary.LittleEndian.PutUint64(data[72:80], 5000)
	return data
}

func TestEngineNonceAutoRefresh(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	nonceAccount := solana.NewWallet().PublicKey()
	chainHash := solana.Hash{0xEE, 0x42}
	frpc := &fakeRPC{
		blockhash: solana.Hash{0xAA},
		accountData: map[solana.PublicKey][]byte{
			nonceAccount: nonceAccountBytes(solana.NewWallet().PublicKey(), chainHash),
		},
	}

	// Кэш пуст: движок сам подтянет значение из аккаунта.
	nc := cache.NewNonceCache(nonceAccount)
	e := newTestEngine(t, frpc, []swqos.Client{direct}, func(o *Options) { o.Nonce = nc })

	req := buyRequest(mint)
	req.UseNonce = true
	_, err := e.Buy(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, chainHash, direct.captured(t).Message.RecentBlockhash)
}

func TestEngineNonceRefreshFailure(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	// Аккаунта нет в фейке, поэтому обновление кэша провалится.
	frpc := &fakeRPC{blockhash: solana.Hash{0xAA}}
	nc := cache.NewNonceCache(solana.NewWallet().PublicKey())
	e := newTestEngine(t, frpc, []swqos.Client{direct}, func(o *Options) { o.Nonce = nc })

	req := buyRequest(mint)
	req.UseNonce = true
	_, err := e.Buy(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrNonceNotReady)
	assert.Empty(t, direct.sent)
}

func TestEngineBuyTipSchedule(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	clients := []*fakeDelivery{
		{service: swqos.ServiceJito, endpoint: "https://a.test", tip: solana.NewWallet().PublicKey()},
		{service: swqos.ServiceNextBlock, endpoint: "https://b.test", tip: solana.NewWallet().PublicKey()},
		{service: swqos.ServiceZeroSlot, endpoint: "https://c.test", tip: solana.NewWallet().PublicKey()},
	}

	fee := types.DefaultPriorityFee()
	fee.BuyTipFees = []float64{0.002, 0.0005} // хвост добивается последним значением

	frpc := &fakeRPC{blockhash: solana.Hash{0x07}}
	e := newTestEngine(t, frpc,
		[]swqos.Client{clients[0], clients[1], clients[2]},
		func(o *Options) { o.PriorityFee = fee })

	_, err := e.Buy(context.Background(), buyRequest(mint))
	require.NoError(t, err)

	want := []uint64{types.SolToLamports(0.002), types.SolToLamports(0.0005), types.SolToLamports(0.0005)}
	for i, client := range clients {
		ixs := decodeMessage(t, client.captured(t))
		tipIx := ixs[len(ixs)-1]
		require.Equal(t, solana.SystemProgramID, tipIx.program, "клиент %d", i)
		assert.Equal(t, want[i], binary.LittleEndian.Uint64(tipIx.data[4:12]), "клиент %d", i)
		assert.Equal(t, clients[i].tip, tipIx.accounts[1], "клиент %d", i)
	}
}

func TestEngineSellByPercent(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	sellSwapAmount := func(t *testing.T, frpc *fakeRPC, percent uint8) (uint64, error) {
		t.Helper()
		direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}
		e := newTestEngine(t, frpc, []swqos.Client{direct}, nil)
		req := buyRequest(mint)
		req.AmountIn = 0 // SellByPercent выставит сам

		var err error
		if percent == 100 {
			_, err = e.SellAll(context.Background(), req)
		} else {
			_, err = e.SellByPercent(context.Background(), req, percent)
		}
		if err != nil {
			return 0, err
		}
		swap := findByProgram(t, decodeMessage(t, direct.captured(t)), raydiumamm.ProgramID)
		return binary.LittleEndian.Uint64(swap.data[1:9]), nil
	}

	t.Run("процент от остатка", func(t *testing.T) {
		frpc := &fakeRPC{blockhash: solana.Hash{0x01}, tokenBalance: 1_000_000}
		amount, err := sellSwapAmount(t, frpc, 40)
		require.NoError(t, err)
		assert.Equal(t, uint64(400_000), amount)
	})

	t.Run("продажа всего остатка", func(t *testing.T) {
		frpc := &fakeRPC{blockhash: solana.Hash{0x02}, tokenBalance: 1_000_000}
		amount, err := sellSwapAmount(t, frpc, 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), amount)
	})

	t.Run("пустой баланс", func(t *testing.T) {
		frpc := &fakeRPC{blockhash: solana.Hash{0x03}, tokenBalance: 0}
		_, err := sellSwapAmount(t, frpc, 50)
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})

	t.Run("ошибка запроса баланса", func(t *testing.T) {
		frpc := &fakeRPC{blockhash: solana.Hash{0x04}, tokenErr: errors.New("rpc down")}
		_, err := sellSwapAmount(t, frpc, 50)
		assert.ErrorContains(t, err, "rpc down")
	})

	t.Run("процент вне диапазона", func(t *testing.T) {
		frpc := &fakeRPC{blockhash: solana.Hash{0x05}, tokenBalance: 100}
		_, err := sellSwapAmount(t, frpc, 0)
		assert.ErrorIs(t, err, types.ErrInvalidParams)
		_, err = sellSwapAmount(t, frpc, 101)
		assert.ErrorIs(t, err, types.ErrInvalidParams)
	})

	t.Run("доля меньше одной единицы", func(t *testing.T) {
		frpc := &fakeRPC{blockhash: solana.Hash{0x06}, tokenBalance: 3}
		_, err := sellSwapAmount(t, frpc, 1)
		assert.ErrorIs(t, err, types.ErrAmountTooSmall)
	})
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		amount  uint64
		percent uint8
		want    uint64
	}{
		{1000, 40, 400},
		{100, 33, 33},
		{3, 33, 0},
		{math.MaxUint64, 100, math.MaxUint64},
		{math.MaxUint64, 50, math.MaxUint64 / 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentOf(tt.amount, tt.percent),
			"%d%% от %d", tt.percent, tt.amount)
	}
}

func TestEngineWaitConfirmation(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	frpc := &fakeRPC{
		blockhash: solana.Hash{0x11},
		statuses: []*rpc.SignatureStatusesResult{
			nil, // ещё не видна в сети
			{Slot: 1234, ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
	}
	e := newTestEngine(t, frpc, []swqos.Client{direct}, nil)

	req := buyRequest(mint)
	req.WaitConfirmed = true
	res, err := e.Buy(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, uint64(1234), res.Slot)
	assert.GreaterOrEqual(t, frpc.statusCalls, 2)
}

func TestEngineConfirmationOnChainFailure(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	frpc := &fakeRPC{
		blockhash: solana.Hash{0x12},
		statuses: []*rpc.SignatureStatusesResult{
			{Slot: 9, Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
		},
	}
	e := newTestEngine(t, frpc, []swqos.Client{direct}, nil)

	req := buyRequest(mint)
	req.WaitConfirmed = true
	res, err := e.Buy(context.Background(), req)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed on-chain")

	// Подпись уже в сети, поэтому результат возвращается вместе с ошибкой.
	require.NotNil(t, res)
	assert.False(t, res.Confirmed)
	assert.Contains(t, err.Error(), res.Signature.String())
	assert.Equal(t, 1, frpc.statusCalls) // ошибка исполнения не ретраится
}

func TestEngineConfirmationTimeout(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}

	// Статус так и не появляется.
	frpc := &fakeRPC{blockhash: solana.Hash{0x13}}
	e := newTestEngine(t, frpc, []swqos.Client{direct}, func(o *Options) {
		o.ConfirmTimeout = 300 * time.Millisecond
	})

	req := buyRequest(mint)
	req.WaitConfirmed = true
	res, err := e.Buy(context.Background(), req)
	require.Error(t, err)
	assert.ErrorContains(t, err, "sent but not confirmed")
	require.NotNil(t, res)
	assert.False(t, res.Confirmed)
}

func TestEngineMiddleware(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	t.Run("видит полный набор инструкций", func(t *testing.T) {
		jito := &fakeDelivery{service: swqos.ServiceJito, endpoint: "https://a.test", tip: solana.NewWallet().PublicKey()}
		direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://b.test"}

		var mu sync.Mutex
		var counts []int
		pipe := middleware.NewPipeline(zap.NewNop()).Add(
			middleware.NewFunc("counter", func(ctx context.Context, in []solana.Instruction) ([]solana.Instruction, error) {
				mu.Lock()
				counts = append(counts, len(in))
				mu.Unlock()
				return in, nil
			}))

		frpc := &fakeRPC{blockhash: solana.Hash{0x21}}
		e := newTestEngine(t, frpc, []swqos.Client{jito, direct}, func(o *Options) { o.Middleware = pipe })

		_, err := e.Buy(context.Background(), buyRequest(mint))
		require.NoError(t, err)

		// Проигравшая сборка может ещё выполняться после возврата Buy.
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(counts) == 2
		}, time.Second, 5*time.Millisecond)

		// Ускоритель несёт шесть инструкций (с чаевыми), прямой RPC пять.
		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []int{6, 5}, counts)
	})

	t.Run("ошибка прерывает каждую сборку", func(t *testing.T) {
		direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://b.test"}
		pipe := middleware.NewPipeline(zap.NewNop()).Add(
			middleware.NewFunc("boom", func(ctx context.Context, in []solana.Instruction) ([]solana.Instruction, error) {
				return nil, errors.New("rejected")
			}))

		frpc := &fakeRPC{blockhash: solana.Hash{0x22}}
		e := newTestEngine(t, frpc, []swqos.Client{direct}, func(o *Options) { o.Middleware = pipe })

		_, err := e.Buy(context.Background(), buyRequest(mint))
		require.Error(t, err)
		var agg *swqos.AggregateError
		require.ErrorAs(t, err, &agg)
		assert.ErrorContains(t, err, `middleware "boom"`)
		assert.Empty(t, direct.sent)
	})
}

func TestEngineBuyWithLookupTables(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	pool := wsolPool(mint)
	table := solana.NewWallet().PublicKey()

	lc := cache.NewLookupTableCache(func(ctx context.Context, address solana.PublicKey) ([]byte, error) {
		return nil, errors.New("unexpected fetch")
	}, zap.NewNop())
	lc.Put(table, solana.PublicKeySlice{raydiumamm.Authority, pool.CoinVault, pool.PcVault})

	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}
	frpc := &fakeRPC{blockhash: solana.Hash{0x31}}
	e := newTestEngine(t, frpc, []swqos.Client{direct}, func(o *Options) { o.Lookups = lc })

	req := buyRequest(mint)
	req.Params = pool
	req.LookupTable = &table
	_, err := e.Buy(context.Background(), req)
	require.NoError(t, err)

	// Аккаунты пула ушли в lookup-таблицу версионированного сообщения.
	tx := direct.captured(t)
	assert.True(t, tx.Message.IsVersioned())
	require.Len(t, tx.Message.AddressTableLookups, 1)
	lookup := tx.Message.AddressTableLookups[0]
	assert.Equal(t, table, lookup.AccountKey)
	assert.NotEmpty(t, append(lookup.WritableIndexes, lookup.ReadonlyIndexes...))
	require.Len(t, tx.Signatures, 1)
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
}

func TestEngineValidation(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	frpc := &fakeRPC{blockhash: solana.Hash{0x41}}
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}
	e := newTestEngine(t, frpc, []swqos.Client{direct}, nil)

	tests := []struct {
		name    string
		mutate  func(req *types.TradeRequest) *types.TradeRequest
		wantErr error
	}{
		{
			name:    "nil запрос",
			mutate:  func(req *types.TradeRequest) *types.TradeRequest { return nil },
			wantErr: types.ErrInvalidParams,
		},
		{
			name: "нулевой mint",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				req.Mint = solana.PublicKey{}
				return req
			},
			wantErr: types.ErrInvalidParams,
		},
		{
			name: "нулевая сумма",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				req.AmountIn = 0
				return req
			},
			wantErr: types.ErrInvalidAmount,
		},
		{
			name: "slippage больше 100%",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				req.SlippageBps = 10_001
				return req
			},
			wantErr: types.ErrInvalidParams,
		},
		{
			name: "неизвестный протокол",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				req.Protocol = types.ProtocolUnknown
				return req
			},
			wantErr: types.ErrUnknownProtocol,
		},
		{
			name: "чужие параметры протокола",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				req.Params = struct{}{}
				return req
			},
			wantErr: types.ErrInvalidParams,
		},
		{
			name: "nonce без кэша",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				req.UseNonce = true
				return req
			},
			wantErr: types.ErrInvalidConfig,
		},
		{
			name: "lookup-таблица без кэша",
			mutate: func(req *types.TradeRequest) *types.TradeRequest {
				table := solana.NewWallet().PublicKey()
				req.LookupTable = &table
				return req
			},
			wantErr: types.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Buy(context.Background(), tt.mutate(buyRequest(mint)))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, direct.sent)
		})
	}
}

func TestNewEngineValidation(t *testing.T) {
	frpc := &fakeRPC{}
	w := testWallet(t)
	registry := dex.NewRegistry(zap.NewNop())
	racer := swqos.NewRacer([]swqos.Client{
		&fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"},
	}, zap.NewNop())

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name:    "без кошелька",
			opts:    Options{RPC: frpc, Registry: registry, Racer: racer},
			wantErr: "wallet is required",
		},
		{
			name:    "без RPC",
			opts:    Options{Wallet: w, Registry: registry, Racer: racer},
			wantErr: "rpc client is required",
		},
		{
			name:    "без реестра",
			opts:    Options{Wallet: w, RPC: frpc, Racer: racer},
			wantErr: "dex registry is required",
		},
		{
			name:    "без клиентов доставки",
			opts:    Options{Wallet: w, RPC: frpc, Registry: registry},
			wantErr: "at least one delivery client",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.opts)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("значения по умолчанию", func(t *testing.T) {
		e, err := NewEngine(Options{Wallet: w, RPC: frpc, Registry: registry, Racer: racer})
		require.NoError(t, err)
		assert.Equal(t, types.DefaultPriorityFee(), e.priorityFee)
		assert.Equal(t, defaultConfirmTimeout, e.confirmTimeout)
		assert.NotNil(t, e.logger)
	})
}

func TestEngineAllEndpointsFail(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	sendErr := errors.New("bandwidth exceeded")
	clients := []swqos.Client{
		&fakeDelivery{service: swqos.ServiceJito, endpoint: "https://a.test", tip: solana.NewWallet().PublicKey(), err: sendErr},
		&fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://b.test", err: sendErr},
	}
	frpc := &fakeRPC{blockhash: solana.Hash{0x51}}
	e := newTestEngine(t, frpc, clients, nil)

	_, err := e.Buy(context.Background(), buyRequest(mint))
	require.Error(t, err)

	var agg *swqos.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Reasons, 2)
	assert.ErrorIs(t, err, sendErr)
}

func TestEngineBlockhashFailure(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	direct := &fakeDelivery{service: swqos.ServiceDefault, endpoint: "https://rpc.test"}
	frpc := &fakeRPC{blockhashErr: errors.New("rpc down")}
	e := newTestEngine(t, frpc, []swqos.Client{direct}, nil)

	_, err := e.Buy(context.Background(), buyRequest(mint))
	require.Error(t, err)
	assert.ErrorContains(t, err, "rpc down")
	assert.Empty(t, direct.sent)
}
