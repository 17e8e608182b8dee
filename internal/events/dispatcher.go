// =============================
// File: internal/events/dispatcher.go
// =============================
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultQueueSize = 256

// subscriber держит очередь доставки и единственную горутину-доставщика:
// так порядок прибытия сохраняется для каждого подписчика.
type subscriber struct {
	id      uuid.UUID
	handler Handler
	queue   chan *UnifiedEvent
	done    chan struct{}
}

// Dispatcher раздаёт декодированные события подписчикам. Каждый подписчик
// получает каждое событие ровно один раз в порядке вызовов Dispatch.
type Dispatcher struct {
	logger *zap.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[uuid.UUID]*subscriber
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. buffer задаёт глубину очереди
// подписчика, неположительное значение заменяется умолчанием.
func NewDispatcher(logger *zap.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: logger.Named("event_dispatcher"),
		buffer: buffer,
		subs:   make(map[uuid.UUID]*subscriber),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe регистрирует обработчик и запускает его горутину доставки.
func (d *Dispatcher) Subscribe(handler Handler) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDispatcherClosed
	}

	sub := &subscriber{
		id:      uuid.New(),
		handler: handler,
		queue:   make(chan *UnifiedEvent, d.buffer),
		done:    make(chan struct{}),
	}
	d.subs[sub.id] = sub
	d.wg.Add(1)
	go d.deliver(sub)

	d.logger.Debug("Подписчик зарегистрирован",
		zap.String("subscription_id", sub.id.String()))
	return &Subscription{id: sub.id, dispatcher: d}, nil
}

// SubscribeFunc оформляет подписку функцией.
func (d *Dispatcher) SubscribeFunc(fn func(context.Context, *UnifiedEvent) error) (*Subscription, error) {
	return d.Subscribe(HandlerFunc(fn))
}

// Subscribers возвращает число активных подписок.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Dispatch ставит событие в очередь каждому подписчику. Переполненная
// очередь притормаживает вызов, а не роняет событие: каждый подписчик
// видит каждое событие ровно один раз.
func (d *Dispatcher) Dispatch(ctx context.Context, event *UnifiedEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	for _, sub := range d.subs {
		select {
		case sub.queue <- event:
		case <-sub.done:
			// Подписчик успел отписаться.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) deliver(sub *subscriber) {
	defer d.wg.Done()
	for {
		select {
		case event, ok := <-sub.queue:
			if !ok {
				// Остановка диспетчера: очередь дочитана до конца.
				return
			}
			if err := sub.handler.Handle(d.ctx, event); err != nil {
				d.logger.Error("Ошибка обработчика события",
					zap.String("subscription_id", sub.id.String()),
					zap.String("protocol", event.Protocol.String()),
					zap.String("kind", event.Kind.String()),
					zap.Error(err))
			}
		case <-sub.done:
			// Отписка: недоставленный остаток очереди отбрасывается.
			return
		}
	}
}

func (d *Dispatcher) unsubscribe(id uuid.UUID) {
	d.mu.RLock()
	sub, ok := d.subs[id]
	d.mu.RUnlock()
	if !ok {
		return
	}

	// Сначала сигнал: Dispatch, застрявший на полной очереди этого
	// подписчика, держит RLock и должен отпуститься до взятия Lock.
	close(sub.done)

	d.mu.Lock()
	delete(d.subs, id)
	d.mu.Unlock()
	d.logger.Debug("Подписка снята", zap.String("subscription_id", id.String()))
}

// Shutdown останавливает приём, дожидается доставки уже поставленных в
// очереди событий и возвращает ошибку контекста, если доставка не успела.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	subs := make([]*subscriber, 0, len(d.subs))
	for _, sub := range d.subs {
		subs = append(subs, sub)
	}
	d.subs = make(map[uuid.UUID]*subscriber)
	d.mu.Unlock()

	// Dispatch больше не войдёт (closed под RLock), очереди можно закрывать.
	for _, sub := range subs {
		close(sub.queue)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		d.logger.Info("Диспетчер событий остановлен")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn("Остановка диспетчера событий по таймауту")
		return ctx.Err()
	}
}

// Subscription держит хэндл подписки. Close идемпотентен.
type Subscription struct {
	id         uuid.UUID
	dispatcher *Dispatcher
	once       sync.Once
}

func (s *Subscription) ID() uuid.UUID { return s.id }

func (s *Subscription) Close() {
	s.once.Do(func() { s.dispatcher.unsubscribe(s.id) })
}
