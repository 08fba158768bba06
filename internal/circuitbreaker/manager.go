package circuitbreaker

import (
	"sync"

	"monoova-gateway/internal/common/logging"
)

// Manager hands out one breaker per name, created on first use
type Manager struct {
	config   Config
	logger   logging.Logger
	mu       sync.Mutex
	breakers map[string]*GoBreakerAdapter
}

// NewManager creates a manager whose breakers share config
func NewManager(config Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*GoBreakerAdapter),
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (m *Manager) GetOrCreate(name string) *GoBreakerAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	breaker := NewGoBreaker(name, m.config, m.logger)
	m.breakers[name] = breaker
	return breaker
}

// States reports the state of every breaker created so far
func (m *Manager) States() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]string, len(m.breakers))
	for name, breaker := range m.breakers {
		states[name] = breaker.State().String()
	}
	return states
}
