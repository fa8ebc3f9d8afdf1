package controller

import "sync"

// Manager is the registry of live controllers, one per SUT name.
type Manager struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	order       []string
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{controllers: make(map[string]*Controller)}
}

// Add registers a controller under its SUT name, replacing (and stopping)
// any previous one.
func (m *Manager) Add(c *Controller) {
	name := c.SUT().Name

	m.mu.Lock()
	prev, existed := m.controllers[name]
	m.controllers[name] = c
	if !existed {
		m.order = append(m.order, name)
	}
	m.mu.Unlock()

	if existed && prev != nil {
		prev.Stop()
	}
}

// Get returns the controller for a SUT name.
func (m *Manager) Get(name string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[name]
	return c, ok
}

// Remove stops and deregisters the named controller. Returns false if it
// was not registered.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	c, ok := m.controllers[name]
	if ok {
		delete(m.controllers, name)
		for i, n := range m.order {
			if n == name {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if ok {
		c.Stop()
	}
	return ok
}

// StopAll stops every controller. Used on daemon shutdown.
func (m *Manager) StopAll() {
	for _, c := range m.list() {
		c.Stop()
	}
}

// Snapshots returns every controller's progress in registration order.
func (m *Manager) Snapshots() []Progress {
	list := m.list()
	out := make([]Progress, len(list))
	for i, c := range list {
		out[i] = c.Progress()
	}
	return out
}

func (m *Manager) list() []*Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Controller, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.controllers[name])
	}
	return out
}
