package registry

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

var (
	ErrNegativeCost         = errors.New("task cost must not be negative")
	ErrNoActiveTask         = errors.New("agent has no active task")
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrDuplicateAgent       = errors.New("duplicate agent id")
)

// DefaultAgents returns the agents every deployment starts with
func DefaultAgents() []core.AgentDefinition {
	return []core.AgentDefinition{
		{ID: core.AgentInbox, Name: "Inbox Agent", Description: "Parses incoming supplier emails and extracts entities"},
		{ID: core.AgentPOTracker, Name: "PO Tracker Agent", Description: "Tracks purchase order status and delivery updates"},
		{ID: core.AgentChangeManager, Name: "Change Manager Agent", Description: "Handles price and quantity change requests"},
		{ID: core.AgentRouting, Name: "Routing Agent", Description: "Triages emails that could not be routed with confidence"},
	}
}

type agentState struct {
	mu    sync.Mutex
	agent core.Agent
}

// Registry owns the state of a fixed set of agents. Each agent has its own lock.
type Registry struct {
	order  []string
	agents map[string]*agentState
	logger *zap.Logger
}

// New creates a registry for the given agents
func New(defs []core.AgentDefinition, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		agents: make(map[string]*agentState, len(defs)),
		logger: logger,
	}
	for _, def := range defs {
		if _, ok := r.agents[def.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, def.ID)
		}
		r.agents[def.ID] = &agentState{agent: core.Agent{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Status:      core.AgentIdle,
		}}
		r.order = append(r.order, def.ID)
	}
	return r, nil
}

func (r *Registry) state(id string) (*agentState, error) {
	s, ok := r.agents[id]
	if !ok {
		return nil, &core.UnknownAgentError{AgentID: id}
	}
	return s, nil
}

// Get returns a copy of an agent
func (r *Registry) Get(id string) (core.Agent, error) {
	s, err := r.state(id)
	if err != nil {
		return core.Agent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent, nil
}

// BeginTask marks the agent busy and returns a guard that must be completed once
func (r *Registry) BeginTask(id string) (core.TaskGuard, error) {
	s, err := r.state(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.agent.ActiveTasks++
	s.agent.Status = core.AgentBusy
	s.mu.Unlock()

	return &taskGuard{registry: r, agentID: id}, nil
}

// CompleteTask records the outcome of a task started with BeginTask
func (r *Registry) CompleteTask(id string, success bool, cost float64) error {
	s, err := r.state(id)
	if err != nil {
		return err
	}
	if cost < 0 {
		return ErrNegativeCost
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agent.ActiveTasks <= 0 {
		s.agent.Status = core.AgentError
		r.logger.Error("Task completed on agent with no active task", zap.String("agent", id))
		return fmt.Errorf("%w: %s", ErrNoActiveTask, id)
	}

	s.agent.ActiveTasks--
	s.agent.TotalCost += cost
	if success {
		s.agent.TasksCompleted++
	} else {
		s.agent.TasksFailed++
	}
	if s.agent.ActiveTasks == 0 {
		s.agent.Status = core.AgentIdle
	}
	return nil
}

// StatusSnapshot returns a copy of every agent in registration order
func (r *Registry) StatusSnapshot() []core.Agent {
	out := make([]core.Agent, 0, len(r.order))
	for _, id := range r.order {
		s := r.agents[id]
		s.mu.Lock()
		out = append(out, s.agent)
		s.mu.Unlock()
	}
	return out
}

type taskGuard struct {
	registry *Registry
	agentID  string
	once     sync.Once
}

// Complete finishes the task. Calls after the first return ErrTaskAlreadyCompleted.
func (g *taskGuard) Complete(success bool, cost float64) error {
	if cost < 0 {
		return ErrNegativeCost
	}
	err := ErrTaskAlreadyCompleted
	g.once.Do(func() {
		err = g.registry.CompleteTask(g.agentID, success, cost)
	})
	return err
}
