// =============================
// File: internal/stream/listener.go
// =============================
// Package stream подключается к WebSocket-узлу Solana, подписывается на логи
// отслеживаемых программ (logsSubscribe с фильтром mentions) и скармливает
// извлечённые события декодеру. Это комплектный транспорт по умолчанию:
// вызывающий код со своим потоком может отдавать сырые байты напрямую в
// events.Decode.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultDialTimeout    = 10 * time.Second
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second

	// dedupeWindow определяет, сколько последних подписей помнить для
	// отсечения повторов между подписками.
	dedupeWindow = 1024

	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// Sink принимает декодированные события. Реализуется events.Dispatcher.
type Sink interface {
	Dispatch(ctx context.Context, event *events.UnifiedEvent) error
}

// Options описывает подключение слушателя.
type Options struct {
	// URL WebSocket-узла (ws:// или wss://).
	URL string
	// Programs перечисляет отслеживаемые программы. По одной подписке
	// logsSubscribe на каждую: фильтр mentions принимает ровно один адрес.
	Programs []solana.PublicKey
	// Commitment уровня подписки. По умолчанию confirmed.
	Commitment rpc.CommitmentType
	Sink       Sink
	Logger     *zap.Logger
	// InitialBackoff и MaxBackoff управляют задержкой переподключения.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DialTimeout    time.Duration
}

// Listener держит одно WebSocket-соединение и превращает уведомления
// logsNotification в события для приёмника.
type Listener struct {
	opts   Options
	logger *zap.Logger
	dedupe *sigDedupe

	notifications atomic.Uint64
	dispatched    atomic.Uint64
}

// NewListener проверяет опции и подставляет значения по умолчанию.
func NewListener(opts Options) (*Listener, error) {
	if opts.URL == "" {
		return nil, errors.New("websocket URL is required")
	}
	if len(opts.Programs) == 0 {
		return nil, errors.New("at least one program is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	return &Listener{
		opts:   opts,
		logger: opts.Logger.Named("log_stream"),
		dedupe: newSigDedupe(dedupeWindow),
	}, nil
}

// Run держит подключение и заново подписывается после обрывов.
// Возвращается при отмене контекста или закрытии приёмника.
func (l *Listener) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.opts.InitialBackoff
	policy.MaxInterval = l.opts.MaxBackoff

	for {
		conn, err := l.connect(ctx)
		if err == nil {
			policy.Reset()
			err = l.readLoop(ctx, conn)
			_ = conn.Close()
		}
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, events.ErrDispatcherClosed):
			return err
		}
		delay := policy.NextBackOff()
		l.logger.Warn("соединение потеряно, переподключение",
			zap.Error(err),
			zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats возвращает счётчики с момента запуска: полученные уведомления и
// доставленные в приёмник события.
func (l *Listener) Stats() (notifications, dispatched uint64) {
	return l.notifications.Load(), l.dispatched.Load()
}

func (l *Listener) connect(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, l.opts.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, l.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", l.opts.URL, err)
	}

	// id запроса = позиция программы + 1; по нему узнаётся подтверждение.
	for i, program := range l.opts.Programs {
		req := rpcRequest{
			JSONRPC: "2.0",
			ID:      i + 1,
			Method:  "logsSubscribe",
			Params: []any{
				map[string]any{"mentions": []string{program.String()}},
				map[string]any{"commitment": string(l.opts.Commitment)},
			},
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(req); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", program, err)
		}
	}
	l.logger.Info("подписка на логи отправлена",
		zap.String("url", l.opts.URL),
		zap.Int("programs", len(l.opts.Programs)),
		zap.String("commitment", string(l.opts.Commitment)))
	return conn, nil
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	// После подписки пишет только пингер; гонок записи нет.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	// Отмена контекста рвёт блокирующий ReadMessage закрытием соединения.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := l.handleMessage(ctx, message); err != nil {
			return err
		}
	}
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

// inbound покрывает оба вида входящих кадров: подтверждение подписки
// (id + result) и уведомление logsNotification (method + params).
type inbound struct {
	ID     int                 `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
	Method string              `json:"method"`
	Params *notifyParams       `json:"params"`
}

type notifyParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string   `json:"signature"`
			Err       any      `json:"err"`
			Logs      []string `json:"logs"`
		} `json:"value"`
	} `json:"result"`
}

func (l *Listener) handleMessage(ctx context.Context, message []byte) error {
	var msg inbound
	if err := json.Unmarshal(message, &msg); err != nil {
		l.logger.Warn("нечитаемый кадр", zap.Error(err))
		return nil
	}
	switch {
	case msg.Error != nil:
		l.logger.Error("узел отклонил запрос",
			zap.Int("id", msg.ID),
			zap.Int("code", msg.Error.Code),
			zap.String("message", msg.Error.Message))
	case msg.Method == "logsNotification" && msg.Params != nil:
		return l.processNotification(ctx, msg.Params)
	case msg.ID != 0:
		var subID int64
		_ = json.Unmarshal(msg.Result, &subID)
		program := "?"
		if msg.ID >= 1 && msg.ID <= len(l.opts.Programs) {
			program = l.opts.Programs[msg.ID-1].String()
		}
		l.logger.Debug("подписка активна",
			zap.Int64("subscription", subID),
			zap.String("program", program))
	}
	return nil
}

func (l *Listener) processNotification(ctx context.Context, params *notifyParams) error {
	l.notifications.Add(1)
	value := &params.Result.Value

	// Узел присылает и логи упавших транзакций; их события не произошли.
	if value.Err != nil {
		return nil
	}

	var sig solana.Signature
	rawSig, err := base58.Decode(value.Signature)
	if err != nil || len(rawSig) != len(sig) {
		l.logger.Warn("повреждённая подпись в уведомлении",
			zap.String("signature", value.Signature))
	} else {
		copy(sig[:], rawSig)
		if !l.dedupe.observe(sig) {
			return nil
		}
	}

	for i, p := range extractPayloads(value.Logs) {
		prov := events.Provenance{
			Slot:      params.Result.Context.Slot,
			Signature: sig,
			Index:     i,
			Program:   p.program,
		}
		var (
			ev     *events.UnifiedEvent
			decErr error
		)
		switch p.kind {
		case payloadRayLog:
			ev, decErr = events.DecodeRayLog(p.raw, prov)
		default:
			ev, decErr = events.Decode(p.raw, prov)
		}
		if decErr != nil {
			// Узнанное событие с повреждённым телом: фиксируем и едем дальше.
			l.logger.Warn("ошибка декодирования события",
				zap.Uint64("slot", prov.Slot),
				zap.String("signature", value.Signature),
				zap.Int("index", i),
				zap.Error(decErr))
			continue
		}
		if ev == nil {
			continue
		}
		if err := l.opts.Sink.Dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		l.dispatched.Add(1)
	}
	return nil
}
