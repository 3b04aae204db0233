package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentscaffold/config"
	"github.com/smallnest/agentscaffold/domain"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/service"
	"github.com/smallnest/agentscaffold/store/redis"
	"github.com/smallnest/agentscaffold/store/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	cfg.Host = "127.0.0.1"
	cfg.LLMProvider = "mock"
	cfg.MemoryBackend = config.BackendMemory
	cfg.RAGEmbedder = config.EmbedderHash
	cfg.BraveAPIKey = ""
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, &log.NoOpLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_ServesRequests(t *testing.T) {
	a := newApp(t, testConfig(t))

	for _, name := range []string{"calculator", "current_time", "web_search", "web_fetch", "knowledge_search"} {
		assert.True(t, a.Tools.Has(name), name)
	}

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents/health/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"name":"helper","type":"general","llm":{"model":"mock-1"}}`
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MemoryBackend = "mongo"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "MEMORY_BACKEND")

	cfg = testConfig(t)
	cfg.RAGEmbedder = config.EmbedderOpenAI
	cfg.OpenAIAPIKey = ""
	_, err = New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "embedder")
}

func TestNew_CheckpointBackends(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)

		cfg := testConfig(t)
		cfg.MemoryBackend = config.BackendRedis
		cfg.RedisAddr = mr.Addr()
		a := newApp(t, cfg)
		assert.IsType(t, &redis.CheckpointStore{}, a.Checkpoints)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig(t)
		cfg.MemoryBackend = config.BackendRedis
		cfg.RedisAddr = addr
		_, err = New(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "redis")
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MemoryBackend = config.BackendSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "checkpoints.db")
		a := newApp(t, cfg)
		assert.IsType(t, &sqlite.CheckpointStore{}, a.Checkpoints)
	})
}

func TestNew_PersistenceAcrossTurns(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig(t)
	cfg.MemoryBackend = config.BackendRedis
	cfg.RedisAddr = mr.Addr()
	cfg.EnableMemoryPersistence = true
	a := newApp(t, cfg)
	ctx := context.Background()

	agent, err := a.Agents.Create(ctx, newAgent("memo"))
	require.NoError(t, err)

	first, err := a.Agents.Invoke(ctx, agent.ID, service.InvokeInput{Message: "first"})
	require.NoError(t, err)
	second, err := a.Agents.Invoke(ctx, agent.ID, service.InvokeInput{Message: "second", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Len(t, second.Messages, 4)

	history, err := a.Sessions.History(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestRun_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Port = freePort(t)
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := fmt.Sprintf("http://%s/agents/health/ping", cfg.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newAgent(name string) *domain.Agent {
	return domain.NewAgent(name, domain.AgentTypeGeneral, domain.LLMConfig{Provider: "mock", Model: "mock-1"})
}
