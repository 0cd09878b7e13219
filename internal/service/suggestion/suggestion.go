// Package suggestion runs one consultation turn end to end: rewrite the
// question against memory, retrieve reference records, generate the reply,
// then record the exchange. Failures never escape; the caller gets the
// fallback answer instead.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"mediguide/internal/logger"
	"mediguide/internal/memory"
	"mediguide/internal/models"
	"mediguide/internal/service/ai"
	"mediguide/internal/service/retrieval"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// ErrPanic wraps a recovered panic value.
var ErrPanic = errors.New("suggestion turn panicked")

const defaultStepTimeout = 60 * time.Second

type QuestionRewriter interface {
	Rewrite(ctx context.Context, history []models.Exchange, utterance string) (string, error)
}

type AnswerGenerator interface {
	Generate(ctx context.Context, profile models.UserProfile, history []models.Exchange, question string, docs []*schema.Document) (ai.Answer, error)
}

// StoreSource hands out a retriever for the duration of one turn.
type StoreSource interface {
	Acquire(ctx context.Context) (retriever.Retriever, func(), error)
}

// Result is what a turn produced. Err is set only for diagnostics; Answer is
// always safe to show.
type Result struct {
	Answer  string
	Context []*schema.Document
	Err     error
}

// Failed reports whether the turn fell back.
func (r Result) Failed() bool {
	return r.Err != nil
}

type Options struct {
	Store       StoreSource
	Memory      memory.ConversationMemory
	Rewriter    QuestionRewriter
	Generator   AnswerGenerator
	Logger      *logger.Logger
	TopK        int
	StepTimeout time.Duration
	Fallback    string
}

type Orchestrator struct {
	store       StoreSource
	memory      memory.ConversationMemory
	rewriter    QuestionRewriter
	generator   AnswerGenerator
	log         *logger.Logger
	topK        int
	stepTimeout time.Duration
	fallback    string
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:       opts.Store,
		memory:      opts.Memory,
		rewriter:    opts.Rewriter,
		generator:   opts.Generator,
		log:         opts.Logger,
		topK:        opts.TopK,
		stepTimeout: opts.StepTimeout,
		fallback:    opts.Fallback,
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.memory == nil {
		o.memory = memory.NewBuffer()
	}
	if o.topK <= 0 {
		o.topK = retrieval.DefaultTopK
	}
	if o.stepTimeout <= 0 {
		o.stepTimeout = defaultStepTimeout
	}
	return o
}

// AnswerQuestion never returns an error; a failed turn yields the fallback
// answer, no context, and leaves memory untouched.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, question string, profile models.UserProfile) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			o.log.Error("suggestion turn panicked", "error", err, "stack", string(debug.Stack()))
			res = o.fallbackResult(err)
		}
	}()

	answer, docs, err := o.answer(ctx, question, profile)
	if err != nil {
		o.log.Error("suggestion turn failed", "error", err, "elapsed", time.Since(start))
		return o.fallbackResult(err)
	}
	o.log.Info("suggestion turn answered", "references", len(docs), "elapsed", time.Since(start))
	return Result{Answer: answer, Context: docs}
}

func (o *Orchestrator) answer(ctx context.Context, question string, profile models.UserProfile) (string, []*schema.Document, error) {
	store, release, err := o.store.Acquire(ctx)
	if release != nil {
		defer release()
	}
	if err != nil {
		return "", nil, fmt.Errorf("acquire vector store: %w", err)
	}

	history := o.memory.Load()

	standalone, err := runStep(ctx, o.stepTimeout, func(ctx context.Context) (string, error) {
		return o.rewriter.Rewrite(ctx, history, question)
	})
	if err != nil {
		return "", nil, err
	}
	o.log.Debug("question rewritten", "question", question, "standalone", standalone)

	docs, err := runStep(ctx, o.stepTimeout, func(ctx context.Context) ([]*schema.Document, error) {
		return store.Retrieve(ctx, standalone, retriever.WithTopK(o.topK))
	})
	if err != nil {
		return "", nil, fmt.Errorf("retrieve references: %w", err)
	}

	ans, err := runStep(ctx, o.stepTimeout, func(ctx context.Context) (ai.Answer, error) {
		return o.generator.Generate(ctx, profile, history, question, docs)
	})
	if err != nil {
		return "", nil, err
	}

	o.memory.Save(question, ans.Text)
	return ans.Text, ans.Context, nil
}

func (o *Orchestrator) fallbackResult(err error) Result {
	return Result{Answer: o.fallback, Context: []*schema.Document{}, Err: err}
}

// runStep bounds one provider call by its own deadline.
func runStep[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(stepCtx)
}

// ProviderSource adapts a retrieval.StoreProvider to StoreSource.
func ProviderSource(p *retrieval.StoreProvider) StoreSource {
	return providerSource{p: p}
}

type providerSource struct {
	p *retrieval.StoreProvider
}

func (s providerSource) Acquire(ctx context.Context) (retriever.Retriever, func(), error) {
	store, release, err := s.p.Acquire(ctx)
	if err != nil {
		return nil, release, err
	}
	return store, release, nil
}
