package redis

import (
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/waflawe/Omenforcer/backend/config"
	"go.uber.org/zap"
)

// Manager maps Redis database indices to rueidis clients.
// The cache and the crop task broker live in separate databases.
type Manager struct {
	clients map[int]rueidis.Client
	cfg     *config.Config
	logger  *zap.Logger
	mu      sync.Mutex
}

func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		cfg:     cfg,
		logger:  logger.Named("redis"),
	}
}

// GetClient returns the client for dbIndex, connecting on first use.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[dbIndex]; exists {
		return client, nil
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{m.cfg.RedisAddr},
		Password:     m.cfg.RedisPassword,
		SelectDB:     dbIndex,
		ClientName:   "omenforcer",
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Info("Created new Redis client", zap.Int("dbIndex", dbIndex))
	return client, nil
}

func (m *Manager) Cache() (rueidis.Client, error) {
	return m.GetClient(m.cfg.RedisCacheDB)
}

func (m *Manager) Broker() (rueidis.Client, error) {
	return m.GetClient(m.cfg.RedisBrokerDB)
}

// Close shuts down every client opened so far.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		m.logger.Info("Closed Redis client", zap.Int("dbIndex", dbIndex))
	}
	m.clients = make(map[int]rueidis.Client)
}
