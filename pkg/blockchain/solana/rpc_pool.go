// pkg/blockchain/solana/rpc_pool.go
package solana

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// RPCPool раздаёт клиентов нод по кругу, размазывая нагрузку и лимиты
// провайдеров между эндпоинтами.
type RPCPool struct {
	mutex   sync.Mutex
	clients []*rpc.Client
	index   int
}

func NewRPCPool(rpcList []string) *RPCPool {
	clients := make([]*rpc.Client, 0, len(rpcList))
	for _, url := range rpcList {
		clients = append(clients, rpc.New(url))
	}
	return &RPCPool{clients: clients}
}

// GetClient возвращает следующий клиент пула (круговой цикл).
func (p *RPCPool) GetClient() *rpc.Client {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

// Size возвращает число живых клиентов.
func (p *RPCPool) Size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.clients)
}

func checkClientHealth(client *rpc.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.GetVersion(ctx)
	return err == nil
}

// PerformHealthChecks выкидывает недоступные ноды. Последняя нода
// остаётся в пуле даже больной: без неё клиент бесполезен.
func (p *RPCPool) PerformHealthChecks() {
	p.mutex.Lock()
	clients := make([]*rpc.Client, len(p.clients))
	copy(clients, p.clients)
	p.mutex.Unlock()

	healthy := make([]*rpc.Client, 0, len(clients))
	for _, client := range clients {
		if checkClientHealth(client) {
			healthy = append(healthy, client)
		}
	}
	if len(healthy) == 0 {
		return
	}

	p.mutex.Lock()
	p.clients = healthy
	if p.index >= len(p.clients) {
		p.index = 0
	}
	p.mutex.Unlock()
}
