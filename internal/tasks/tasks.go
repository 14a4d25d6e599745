// Package tasks runs background work for the library: indexing batches,
// rescans and periodic maintenance. A Manager owns every task it starts;
// callers hold task IDs and ask the manager for status or cancellation.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// ErrShutdown is the error of a task submitted after Shutdown.
var ErrShutdown = errors.New("task manager is shut down")

// ID identifies a submitted task.
type ID int64

// State is the lifecycle position of a task.
type State string

const (
	Running  State = "running"
	Done     State = "done"
	Failed   State = "failed"
	Canceled State = "canceled"
)

// Func is the body of a task. It must return promptly once ctx is done.
type Func func(ctx context.Context) error

// Status is a snapshot of one task.
type Status struct {
	ID       ID        `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	State    State     `json:"state" yaml:"state"`
	Err      error     `json:"-" yaml:"-"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished,omitzero" yaml:"finished,omitempty"`
}

type task struct {
	status Status
	cancel context.CancelFunc
}

// Manager runs tasks in goroutines and schedules recurring ones.
type Manager struct {
	mu        sync.Mutex
	log       logrus.FieldLogger
	ctx       context.Context
	stop      context.CancelFunc
	next      ID
	tasks     map[ID]*task
	running   mapset.Set[ID]
	scheduled mapset.Set[string]
	cron      *cron.Cron
	started   bool
	closed    bool
	wg        sync.WaitGroup
	// idle is closed while no task is running.
	idle      chan struct{}
}

// NewManager returns an idle manager. A nil logger uses the logrus standard
// logger.
func NewManager(log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, stop := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Manager{
		idle:      idle,
		log:       log,
		ctx:       ctx,
		stop:      stop,
		tasks:     make(map[ID]*task),
		running:   mapset.NewThreadUnsafeSet[ID](),
		scheduled: mapset.NewThreadUnsafeSet[string](),
		cron:      cron.New(),
	}
}

// Submit starts fn in its own goroutine and returns its ID at once. After
// Shutdown the task is recorded as canceled and never runs.
func (m *Manager) Submit(name string, fn Func) ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	t := &task{status: Status{ID: m.next, Name: name, State: Running, Started: time.Now()}}
	m.tasks[t.status.ID] = t
	if m.closed {
		t.status.State = Canceled
		t.status.Err = ErrShutdown
		t.status.Finished = t.status.Started
		return t.status.ID
	}

	ctx, cancel := context.WithCancel(m.ctx)
	t.cancel = cancel
	if m.running.IsEmpty() {
		m.idle = make(chan struct{})
	}
	m.running.Add(t.status.ID)
	m.wg.Add(1)
	go m.run(ctx, t, fn)
	return t.status.ID
}

func (m *Manager) run(ctx context.Context, t *task, fn Func) {
	defer m.wg.Done()
	log := m.log.WithFields(logrus.Fields{"task": t.status.ID, "name": t.status.Name})
	log.Debug("task started")

	err := call(ctx, fn)

	m.mu.Lock()
	defer m.mu.Unlock()
	t.cancel()
	m.running.Remove(t.status.ID)
	if m.running.IsEmpty() {
		close(m.idle)
	}
	t.status.Finished = time.Now()
	t.status.Err = err
	switch {
	case err == nil:
		t.status.State = Done
		log.Debug("task done")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		t.status.State = Canceled
		log.WithError(err).Info("task canceled")
	default:
		t.status.State = Failed
		log.WithError(err).Error("task failed")
	}
}

// call runs fn, turning a panic into an error.
func call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Cancel asks a running task to stop. It reports whether the task was
// running.
func (m *Manager) Cancel(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running.Contains(id) {
		return false
	}
	m.tasks[id].cancel()
	return true
}

// CancelAll asks every running task to stop and returns how many were
// asked.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id := range m.running.Iter() {
		m.tasks[id].cancel()
		n++
	}
	if n > 0 {
		m.log.WithField("tasks", n).Info("canceling all tasks")
	}
	return n
}

// Status returns a snapshot of a task.
func (m *Manager) Status(id ID) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Status{}, false
	}
	return t.status, true
}

// Active returns the running tasks ordered by ID.
func (m *Manager) Active() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, m.running.Cardinality())
	for id := range m.running.Iter() {
		out = append(out, m.tasks[id].status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wait blocks until no task is running or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()
	// An idle manager returns nil even when ctx is already done.
	select {
	case <-idle:
		return nil
	default:
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule runs fn as a task named name on a cron schedule: six fields
// starting with seconds, or a descriptor such as "@daily" or "@every 1h". A
// run is skipped while the previous run of the same name is still going.
func (m *Manager) Schedule(spec, name string, fn Func) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShutdown
	}
	err := m.cron.AddFunc(spec, func() { m.fire(name, fn) })
	if err != nil {
		return fmt.Errorf("scheduling %s at %q: %w", name, spec, err)
	}
	if !m.started {
		m.cron.Start()
		m.started = true
	}
	m.log.WithFields(logrus.Fields{"name": name, "schedule": spec}).Info("task scheduled")
	return nil
}

func (m *Manager) fire(name string, fn Func) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if !m.scheduled.Add(name) {
		m.mu.Unlock()
		m.log.WithField("name", name).Warn("previous run still going, skipping")
		return
	}
	m.mu.Unlock()

	m.Submit(name, func(ctx context.Context) error {
		defer func() {
			m.mu.Lock()
			m.scheduled.Remove(name)
			m.mu.Unlock()
		}()
		return fn(ctx)
	})
}

// Shutdown stops the scheduler, cancels every running task and waits for
// them to return.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.started {
		m.cron.Stop()
	}
	m.mu.Unlock()

	m.stop()
	m.wg.Wait()
	m.log.Debug("task manager stopped")
	return nil
}
