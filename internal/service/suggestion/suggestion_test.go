package suggestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediguide/internal/memory"
	"mediguide/internal/models"
	"mediguide/internal/service/ai"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const fallback = "很抱歉 寫我的工程師是個笨蛋 她剛剛在中山大學被猴子咬了"

type fakeRetriever struct {
	docs    []*schema.Document
	err     error
	queries []string
	topK    int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	f.queries = append(f.queries, query)
	f.topK = *retriever.GetCommonOptions(&retriever.Options{TopK: new(int)}, opts...).TopK
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeStore struct {
	mu        sync.Mutex
	retriever *fakeRetriever
	err       error
	acquired  int
	released  int
}

func (f *fakeStore) Acquire(ctx context.Context) (retriever.Retriever, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	release := func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}
	if f.err != nil {
		return nil, release, f.err
	}
	return f.retriever, release, nil
}

type fakeRewriter struct {
	out      string
	err      error
	panicMsg string
	history  [][]models.Exchange
}

func (f *fakeRewriter) Rewrite(ctx context.Context, history []models.Exchange, utterance string) (string, error) {
	f.history = append(f.history, history)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.out == "" || len(history) == 0 {
		return utterance, nil
	}
	return f.out, nil
}

type fakeGenerator struct {
	text      string
	err       error
	block     bool
	questions []string
}

func (f *fakeGenerator) Generate(ctx context.Context, profile models.UserProfile, history []models.Exchange, question string, docs []*schema.Document) (ai.Answer, error) {
	f.questions = append(f.questions, question)
	if f.block {
		<-ctx.Done()
		return ai.Answer{}, ctx.Err()
	}
	if f.err != nil {
		return ai.Answer{}, f.err
	}
	return ai.Answer{Text: f.text, Context: docs}, nil
}

type fixture struct {
	store     *fakeStore
	rewriter  *fakeRewriter
	generator *fakeGenerator
	memory    *memory.Buffer
	orch      *Orchestrator
}

func newFixture() *fixture {
	doc := &schema.Document{ID: "r1", Content: "頭痛欲裂", MetaData: map[string]any{"department": "神經內科"}}
	f := &fixture{
		store:     &fakeStore{retriever: &fakeRetriever{docs: []*schema.Document{doc.WithScore(0.9)}}},
		rewriter:  &fakeRewriter{out: "頭痛需要吃止痛藥嗎？"},
		generator: &fakeGenerator{text: "建議多休息。"},
		memory:    memory.NewBuffer(),
	}
	f.orch = New(Options{
		Store:     f.store,
		Memory:    f.memory,
		Rewriter:  f.rewriter,
		Generator: f.generator,
		Fallback:  fallback,
	})
	return f
}

func profile() models.UserProfile {
	return models.UserProfile{Name: "王小明", Birthdate: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), BloodType: models.BloodO}
}

func TestAnswerQuestionSuccessRecordsMemory(t *testing.T) {
	f := newFixture()
	res := f.orch.AnswerQuestion(context.Background(), "我頭很痛", profile())
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Answer != "建議多休息。" || len(res.Context) != 1 || res.Context[0].ID != "r1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.memory.Len() != 1 {
		t.Fatalf("expected memory to grow by one, got %d", f.memory.Len())
	}
	if got := f.memory.Load()[0]; got.Input != "我頭很痛" || got.Output != "建議多休息。" {
		t.Fatalf("unexpected exchange %+v", got)
	}
	if f.store.acquired != 1 || f.store.released != 1 {
		t.Fatalf("store handle not scoped: acquired=%d released=%d", f.store.acquired, f.store.released)
	}
	if f.store.retriever.topK != 3 {
		t.Fatalf("expected top-3 retrieval, got %d", f.store.retriever.topK)
	}
}

func TestFollowUpRewritesAgainstHistory(t *testing.T) {
	f := newFixture()
	f.orch.AnswerQuestion(context.Background(), "我頭很痛", profile())
	res := f.orch.AnswerQuestion(context.Background(), "那需要吃藥嗎", profile())
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(f.rewriter.history[1]) != 1 || f.rewriter.history[1][0].Input != "我頭很痛" {
		t.Fatalf("rewriter did not see prior exchange: %+v", f.rewriter.history[1])
	}
	if q := f.store.retriever.queries[1]; q != "頭痛需要吃止痛藥嗎？" {
		t.Fatalf("retriever should get the standalone question, got %q", q)
	}
	if q := f.generator.questions[1]; q != "那需要吃藥嗎" {
		t.Fatalf("generator should get the original input, got %q", q)
	}
	if f.memory.Len() != 2 {
		t.Fatalf("expected 2 exchanges, got %d", f.memory.Len())
	}
}

func TestFailuresFallBackWithoutTouchingMemory(t *testing.T) {
	boom := errors.New("provider unavailable")
	cases := map[string]func(f *fixture){
		"acquire":  func(f *fixture) { f.store.err = boom },
		"rewrite":  func(f *fixture) { f.rewriter.err = boom },
		"retrieve": func(f *fixture) { f.store.retriever.err = boom },
		"generate": func(f *fixture) { f.generator.err = boom },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.memory.Save("先前的問題", "先前的回答")
			breakIt(f)

			res := f.orch.AnswerQuestion(context.Background(), "我頭很痛", profile())
			if res.Answer != fallback {
				t.Fatalf("expected fallback answer, got %q", res.Answer)
			}
			if !errors.Is(res.Err, boom) {
				t.Fatalf("expected wrapped cause, got %v", res.Err)
			}
			if len(res.Context) != 0 {
				t.Fatalf("fallback must carry no context")
			}
			if f.memory.Len() != 1 {
				t.Fatalf("memory changed on failure: %d", f.memory.Len())
			}
			if f.store.released != f.store.acquired {
				t.Fatalf("release not run: acquired=%d released=%d", f.store.acquired, f.store.released)
			}
		})
	}
}

func TestPanicIsRecovered(t *testing.T) {
	f := newFixture()
	f.rewriter.panicMsg = "nil map"
	res := f.orch.AnswerQuestion(context.Background(), "我頭很痛", profile())
	if res.Answer != fallback || !errors.Is(res.Err, ErrPanic) {
		t.Fatalf("expected recovered fallback, got %+v", res)
	}
	if f.memory.Len() != 0 {
		t.Fatalf("memory changed after panic")
	}
	if f.store.released != 1 {
		t.Fatalf("release skipped on panic")
	}
}

func TestStepTimeoutFallsBack(t *testing.T) {
	f := newFixture()
	f.generator.block = true
	f.orch.stepTimeout = 20 * time.Millisecond

	res := f.orch.AnswerQuestion(context.Background(), "我頭很痛", profile())
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
	if res.Answer != fallback || f.memory.Len() != 0 {
		t.Fatalf("timeout should fall back without saving: %+v", res)
	}
}
