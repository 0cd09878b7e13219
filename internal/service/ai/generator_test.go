package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"mediguide/internal/config"
	"mediguide/internal/docindex"
	"mediguide/internal/models"

	"github.com/cloudwego/eino/schema"
)

func testPersona() config.PersonaConfig {
	return config.PersonaConfig{Language: "繁體中文", MaxChars: 300, HardLimitRunes: 600}
}

func testProfile() models.UserProfile {
	return models.UserProfile{
		Name:      "王小明",
		Birthdate: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		BloodType: models.BloodO,
	}
}

func headacheDocs() []*schema.Document {
	doc := &schema.Document{ID: "r1", Content: "頭痛欲裂怎麼辦", MetaData: map[string]any{
		docindex.MetaDepartment: "神經內科",
		docindex.MetaSymptom:    "頭痛",
		docindex.MetaAnswer:     "回覆 建議多休息，持續疼痛請就醫。",
	}}
	return []*schema.Document{doc.WithScore(0.93)}
}

func newTestGenerator(t *testing.T, fake *fakeChatModel, persona config.PersonaConfig) *Generator {
	t.Helper()
	g, err := NewGenerator(context.Background(), fake, persona)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func TestGenerateFirstTurnPrompt(t *testing.T) {
	fake := &fakeChatModel{replies: []string{"建議先休息，若持續頭痛請至神經內科就診。"}}
	g := newTestGenerator(t, fake, testPersona())
	docs := headacheDocs()

	ans, err := g.Generate(context.Background(), testProfile(), nil, "我頭很痛", docs)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Text != "建議先休息，若持續頭痛請至神經內科就診。" {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if len(ans.Context) != 1 || ans.Context[0].ID != "r1" {
		t.Fatalf("context not passed through: %+v", ans.Context)
	}

	prompt := fake.lastPrompt()
	if len(prompt) != 2 {
		t.Fatalf("expected system+input, got %d messages", len(prompt))
	}
	system := prompt[0].Content
	for _, want := range []string{
		"你是一個專業的醫生。",
		"姓名: 王小明, 出生年月日: 1990-05-17, 血型: O",
		"[1] 科別: 神經內科",
		"症狀: 頭痛",
		"問題: 頭痛欲裂怎麼辦",
		"醫師回覆: 建議多休息，持續疼痛請就醫。",
		"用繁體中文提供簡短建議（≤300字）",
	} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, system)
		}
	}
	if prompt[1].Role != schema.User || prompt[1].Content != "我頭很痛" {
		t.Fatalf("unexpected user message: %+v", prompt[1])
	}
}

func TestGenerateFollowUpCarriesHistory(t *testing.T) {
	fake := &fakeChatModel{replies: []string{"可以短期使用普拿疼。"}}
	g := newTestGenerator(t, fake, testPersona())
	history := []models.Exchange{{Input: "我頭很痛", Output: "建議先休息。"}}

	if _, err := g.Generate(context.Background(), testProfile(), history, "那需要吃藥嗎", headacheDocs()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	prompt := fake.lastPrompt()
	if len(prompt) != 4 {
		t.Fatalf("expected system+history+input, got %d", len(prompt))
	}
	if prompt[1].Content != "我頭很痛" || prompt[2].Content != "建議先休息。" || prompt[3].Content != "那需要吃藥嗎" {
		t.Fatalf("history not threaded in order: %v", prompt)
	}
}

func TestGeneratePromptCarriesPersonaRules(t *testing.T) {
	fake := &fakeChatModel{replies: []string{"ok"}}
	g := newTestGenerator(t, fake, testPersona())
	if _, err := g.Generate(context.Background(), testProfile(), nil, "我頭痛到快爆炸了，整顆頭要飛出去", headacheDocs()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	system := fake.lastPrompt()[0].Content
	if !strings.Contains(system, "日本搞笑藝人的方式吐槽") {
		t.Fatalf("exaggeration rule missing:\n%s", system)
	}
	if !strings.Contains(system, "粗魯的語氣叫他閉嘴") {
		t.Fatalf("off-topic rule missing:\n%s", system)
	}
	for i := range answerRules {
		if !strings.Contains(system, fmt.Sprintf("%d. %s", i+1, answerRules[i][:6])) {
			t.Fatalf("rule %d not enumerated:\n%s", i+1, system)
		}
	}
}

func TestGenerateEmptyContextStillAnswers(t *testing.T) {
	fake := &fakeChatModel{replies: []string{"閉嘴，這跟看病無關。"}}
	g := newTestGenerator(t, fake, testPersona())
	ans, err := g.Generate(context.Background(), testProfile(), nil, "今天股市會漲嗎", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Context == nil || len(ans.Context) != 0 {
		t.Fatalf("expected empty non-nil context, got %#v", ans.Context)
	}
	if !strings.Contains(fake.lastPrompt()[0].Content, noContextText) {
		t.Fatalf("empty-context marker missing")
	}
}

func TestGenerateBlankAnswerIsError(t *testing.T) {
	fake := &fakeChatModel{replies: []string{"  \n"}}
	g := newTestGenerator(t, fake, testPersona())
	if _, err := g.Generate(context.Background(), testProfile(), nil, "我頭很痛", headacheDocs()); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestGenerateProviderError(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("deadline exceeded")}
	g := newTestGenerator(t, fake, testPersona())
	if _, err := g.Generate(context.Background(), testProfile(), nil, "我頭很痛", headacheDocs()); !errors.Is(err, fake.err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestGenerateHardLimit(t *testing.T) {
	long := strings.Repeat("痛", 50)
	fake := &fakeChatModel{replies: []string{long, long}}

	persona := testPersona()
	persona.HardLimitRunes = 10
	ans, err := newTestGenerator(t, fake, persona).Generate(context.Background(), testProfile(), nil, "我頭很痛", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if utf8.RuneCountInString(ans.Text) != 10 {
		t.Fatalf("expected 10 runes, got %d", utf8.RuneCountInString(ans.Text))
	}

	persona.HardLimitRunes = -1
	ans, err = newTestGenerator(t, fake, persona).Generate(context.Background(), testProfile(), nil, "我頭很痛", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Text != long {
		t.Fatalf("negative limit should disable truncation")
	}
}
