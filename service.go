package grove

import (
	"github.com/grovekit/grove/policy"
	"github.com/grovekit/grove/runtime/engine"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/approval"
	approvalmemory "github.com/grovekit/grove/service/approval/memory"
	daostore "github.com/grovekit/grove/service/dao/store"
	"github.com/grovekit/grove/service/event"
	"github.com/grovekit/grove/service/executor"
	"github.com/grovekit/grove/service/executor/nop"
	"github.com/grovekit/grove/service/executor/shell"
	"github.com/grovekit/grove/service/store"
	storememory "github.com/grovekit/grove/service/store/memory"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

// Service is the high-level façade wiring the engine with its
// collaborators: the output store, the executor registry, the approval
// service and the lifecycle event stream.
type Service struct {
	runtime    *Runtime
	config     *Config
	store      store.Service
	registry   *executor.Registry
	approvals  approval.Service
	events     *event.Service
	extensions []executor.Executor
	policy     *policy.Policy
	baseURL    string
	fsOptions  []storage.Option
}

// New creates a grove service. Without options everything runs in-process:
// an in-memory output store, an in-memory approval service and the built-in
// nop and shell executors.
func New(options ...Option) *Service {
	s := &Service{}
	s.init(options)
	return s
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.runtime = &Runtime{
		fs:        afs.New(),
		baseURL:   s.baseURL,
		fsOptions: s.fsOptions,
		engine:    engine.New(s.store, s.registry, s.approvals, s.events),
		store:     s.store,
		approvals: s.approvals,
		policy:    s.policy,
		runs:      daostore.NewMemoryStore[string, execution.Run](func(r *execution.Run) string { return r.ID }),
	}
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	queueConfig := s.config.queueConfig()
	if s.store == nil {
		s.store = storememory.New()
	}
	if s.events == nil {
		s.events = event.NewService(queueConfig)
	}
	if s.approvals == nil {
		s.approvals = approvalmemory.New(queueConfig)
	}
	if s.registry == nil {
		s.registry = executor.NewRegistry()
		s.registry.Register(nop.New())
		s.registry.Register(shell.New())
	}
	for _, extension := range s.extensions {
		s.registry.Register(extension)
	}
	if s.policy == nil && s.config.Policy != nil {
		s.policy = policy.FromConfig(s.config.Policy)
	}
}

// Runtime returns the runtime façade.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Store returns the output store.
func (s *Service) Store() store.Service {
	return s.store
}

// Approvals returns the approval service.
func (s *Service) Approvals() approval.Service {
	return s.approvals
}

// Events returns the lifecycle event service.
func (s *Service) Events() *event.Service {
	return s.events
}

// RegisterExecutor adds an executor after construction.
func (s *Service) RegisterExecutor(executors ...executor.Executor) {
	for _, e := range executors {
		s.registry.Register(e)
	}
}

// OnEvent installs the lifecycle event observer, replacing any previous
// one. Passing nil stops observation.
func (s *Service) OnEvent(handler func(*event.Event)) {
	s.events.SetListener(handler)
}

// Shutdown stops background consumption.
func (s *Service) Shutdown() {
	s.events.Stop()
}
