package solana

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyNode(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"solana-core":"1.18.22","feature-set":4215500110},"id":1}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sickNode(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "node is behind", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCPoolRoundRobin(t *testing.T) {
	pool := NewRPCPool([]string{"http://node-a", "http://node-b", "http://node-c"})
	require.Equal(t, 3, pool.Size())

	first := []*rpc.Client{pool.GetClient(), pool.GetClient(), pool.GetClient()}
	assert.NotSame(t, first[0], first[1])
	assert.NotSame(t, first[1], first[2])

	// Второй круг повторяет первый в том же порядке.
	for _, expected := range first {
		assert.Same(t, expected, pool.GetClient())
	}
}

func TestRPCPoolHealthChecksDropDeadNodes(t *testing.T) {
	healthy := healthyNode(t)
	sick := sickNode(t)

	pool := NewRPCPool([]string{healthy.URL, sick.URL})
	require.Equal(t, 2, pool.Size())

	pool.PerformHealthChecks()
	assert.Equal(t, 1, pool.Size())
}

func TestRPCPoolHealthChecksKeepDyingPool(t *testing.T) {
	pool := NewRPCPool([]string{sickNode(t).URL, sickNode(t).URL})

	// Все ноды больны: пул не самоуничтожается.
	pool.PerformHealthChecks()
	assert.Equal(t, 2, pool.Size())
}

func TestRPCPoolIndexResetAfterShrink(t *testing.T) {
	healthy := healthyNode(t)
	sick := sickNode(t)

	pool := NewRPCPool([]string{sick.URL, healthy.URL, sick.URL})
	// Сдвигаем индекс в хвост, который исчезнет после проверки.
	pool.GetClient()
	pool.GetClient()

	pool.PerformHealthChecks()
	require.Equal(t, 1, pool.Size())

	// Клиент выдаётся без паники и стабильно один и тот же.
	assert.Same(t, pool.GetClient(), pool.GetClient())
}
