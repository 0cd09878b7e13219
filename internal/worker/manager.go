package worker

import (
	"context"
	"errors"
	"sync"

	"mediguide/internal/logger"
	"mediguide/internal/models"
	"mediguide/internal/service/suggestion"
)

const defaultQueueLen = 16

var (
	ErrQueueFull = errors.New("turn queue full")
	ErrStopped   = errors.New("turn queue stopped")
)

// Answerer is satisfied by *suggestion.Orchestrator.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, profile models.UserProfile) suggestion.Result
}

type TurnRequest struct {
	Context  context.Context
	Question string
	Profile  models.UserProfile
}

type turnTask struct {
	req      TurnRequest
	resultCh chan workerReturn
}

type workerReturn struct {
	result suggestion.Result
	err    error
}

// Manager serializes consultation turns through one goroutine so that memory
// reads and writes of consecutive turns never interleave.
type Manager struct {
	answerer Answerer
	log      *logger.Logger

	// mu orders enqueues against Stop so nothing lands in taskCh after the drain
	mu      sync.Mutex
	stopped bool
	taskCh  chan turnTask
	stopCh  chan struct{}
	done    chan struct{}
}

func NewManager(answerer Answerer, queueLen int, log *logger.Logger) *Manager {
	if queueLen <= 0 {
		queueLen = defaultQueueLen
	}
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		answerer: answerer,
		log:      log,
		taskCh:   make(chan turnTask, queueLen),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.run()
	return m
}

// Submit enqueues a turn and waits for its result. A full queue is rejected
// immediately rather than blocking the caller. Once queued, the turn runs to
// completion even if ctx ends first.
func (m *Manager) Submit(ctx context.Context, question string, profile models.UserProfile) (suggestion.Result, error) {
	task := turnTask{
		req:      TurnRequest{Context: context.WithoutCancel(ctx), Question: question, Profile: profile},
		resultCh: make(chan workerReturn, 1),
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return suggestion.Result{}, ErrStopped
	}
	select {
	case m.taskCh <- task:
	default:
		m.mu.Unlock()
		return suggestion.Result{}, ErrQueueFull
	}
	m.mu.Unlock()

	select {
	case ret := <-task.resultCh:
		return ret.result, ret.err
	case <-ctx.Done():
		return suggestion.Result{}, ctx.Err()
	}
}

// Pending reports queued turns not yet picked up.
func (m *Manager) Pending() int {
	return len(m.taskCh)
}

// Stop lets the in-flight turn finish, fails queued ones with ErrStopped and
// waits for the worker goroutine to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.stopCh)
	}
	m.mu.Unlock()
	<-m.done
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		// stop wins over queued work
		select {
		case <-m.stopCh:
			m.drain()
			m.log.Info("turn queue stopped")
			return
		default:
		}
		select {
		case <-m.stopCh:
			m.drain()
			m.log.Info("turn queue stopped")
			return
		case task := <-m.taskCh:
			m.handleTurn(task)
		}
	}
}

func (m *Manager) handleTurn(task turnTask) {
	ctx := task.req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	res := m.answerer.AnswerQuestion(ctx, task.req.Question, task.req.Profile)
	task.resultCh <- workerReturn{result: res}
}

func (m *Manager) drain() {
	for {
		select {
		case task := <-m.taskCh:
			task.resultCh <- workerReturn{err: ErrStopped}
		default:
			return
		}
	}
}
