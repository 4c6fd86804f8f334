// Package pool manages worker executors: bounded reasoning agents, each
// bound to a capability subset drawn from the master registry.
package pool

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/internal/registry"
	"github.com/planweave/planweave/pkg/models"
)

// Common errors for worker pool operations.
var (
	// ErrWorkerExists indicates the worker name is already bound.
	ErrWorkerExists = errors.New("worker already exists")
	// ErrWorkerNotFound indicates the requested worker is not in the pool.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrParse indicates a worker completion payload did not match the
	// expected shape.
	ErrParse = errors.New("malformed worker response")
)

// FileChecker reports whether a worker-claimed artifact actually exists.
// Injected so tests and alternative storage backends can supply their own.
type FileChecker func(path string) bool

// Manager creates, validates and executes workers.
type Manager struct {
	registry  *registry.Registry
	engine    reason.Engine
	runner    reason.ToolRunner
	logger    *zap.Logger
	budget    int
	checkFile FileChecker

	workers map[string]*worker
	order   []string
}

// worker pairs the durable info record with its resolved capability set.
type worker struct {
	info models.WorkerInfo
	caps []registry.Capability
}

// ManagerConfig configures a worker pool manager.
type ManagerConfig struct {
	// Registry is the master capability set, read-only after startup.
	Registry *registry.Registry
	// Engine is the reasoning capability workers execute against.
	Engine reason.Engine
	// Runner executes the tool invocations workers request.
	Runner reason.ToolRunner
	// IterationBudget caps reasoning steps per worker execution.
	IterationBudget int
	// CheckFile verifies worker-claimed artifacts; nil disables the check.
	CheckFile FileChecker
	// Logger is optional.
	Logger *zap.Logger
}

// NewManager creates a worker pool manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	budget := cfg.IterationBudget
	if budget <= 0 {
		budget = 20
	}
	return &Manager{
		registry:  cfg.Registry,
		engine:    cfg.Engine,
		runner:    cfg.Runner,
		logger:    logger,
		budget:    budget,
		checkFile: cfg.CheckFile,
		workers:   make(map[string]*worker),
	}
}

// CreateWorker adds a worker to the pool. The name must be unbound unless
// overwrite is set; every tool in capabilities must exist in the registry.
func (m *Manager) CreateWorker(info models.WorkerInfo, overwrite bool) error {
	if info.Name == "" {
		return fmt.Errorf("worker has no name")
	}
	if _, bound := m.workers[info.Name]; bound && !overwrite {
		return fmt.Errorf("%w: %s", ErrWorkerExists, info.Name)
	}

	caps, err := m.registry.Subset(info.Capabilities)
	if err != nil {
		return fmt.Errorf("resolve capabilities for worker %s: %w", info.Name, err)
	}
	if info.Origin == "" {
		info.Origin = models.OriginDynamic
	}

	_, existed := m.workers[info.Name]
	m.workers[info.Name] = &worker{info: info, caps: caps}
	if !existed {
		m.order = append(m.order, info.Name)
	}

	m.logger.Info("worker registered",
		zap.String("name", info.Name),
		zap.String("origin", string(info.Origin)),
		zap.Strings("capabilities", info.Capabilities))
	return nil
}

// RemoveWorker unbinds a worker name.
func (m *Manager) RemoveWorker(name string) error {
	if _, ok := m.workers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, name)
	}
	delete(m.workers, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ShowPool returns the pool contents in creation order. Read-only; the
// returned slice is a copy.
func (m *Manager) ShowPool() []models.WorkerInfo {
	infos := make([]models.WorkerInfo, 0, len(m.order))
	for _, name := range m.order {
		infos = append(infos, m.workers[name].info)
	}
	return infos
}

// Get returns the info record for a worker name.
func (m *Manager) Get(name string) (models.WorkerInfo, error) {
	w, ok := m.workers[name]
	if !ok {
		return models.WorkerInfo{}, fmt.Errorf("%w: %s", ErrWorkerNotFound, name)
	}
	return w.info, nil
}

// Rebuild replaces the pool contents from durable worker records,
// re-resolving each capability subset against the registry. Used on
// restore: WorkerInfo is what survives a snapshot, executors are cheap.
func (m *Manager) Rebuild(infos []models.WorkerInfo) error {
	workers := make(map[string]*worker, len(infos))
	order := make([]string, 0, len(infos))
	for _, info := range infos {
		caps, err := m.registry.Subset(info.Capabilities)
		if err != nil {
			return fmt.Errorf("rebuild worker %s: %w", info.Name, err)
		}
		if _, dup := workers[info.Name]; dup {
			return fmt.Errorf("%w: duplicate %s in snapshot", ErrWorkerExists, info.Name)
		}
		workers[info.Name] = &worker{info: info, caps: caps}
		order = append(order, info.Name)
	}
	m.workers = workers
	m.order = order
	return nil
}
