package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mediguide/internal/logger"
	"mediguide/internal/models"
	"mediguide/internal/service/retrieval"
	"mediguide/internal/service/suggestion"
)

// ProfilePrompt is the assistant reply when a question arrives before the profile is filled in.
const ProfilePrompt = "請先填寫基本資料"

var ErrEmptyQuestion = errors.New("question cannot be empty")

// Submitter is satisfied by *worker.Manager.
type Submitter interface {
	Submit(ctx context.Context, question string, profile models.UserProfile) (suggestion.Result, error)
}

// Summary is the consultation recap shown after the latest answered turn.
type Summary struct {
	Profile    models.UserProfile `json:"profile"`
	Question   models.ChatTurn    `json:"question"`
	Answer     models.ChatTurn    `json:"answer"`
	References []models.SourceRef `json:"references"`
}

// Service holds one visitor's session: the profile form and the transcript.
type Service struct {
	turns    Submitter
	log      *logger.Logger
	fallback string

	// turn admits one question at a time so transcript pairs never interleave
	turn chan struct{}

	mu         sync.RWMutex
	profile    models.UserProfile
	transcript []*models.ChatTurn
}

func NewService(turns Submitter, fallback string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{turns: turns, fallback: fallback, log: log, turn: make(chan struct{}, 1)}
}

func (s *Service) Profile() models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// UpdateProfile replaces the profile. Partial profiles are accepted; only a
// present blood type is checked.
func (s *Service) UpdateProfile(p models.UserProfile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.BloodType != "" {
		bt, err := models.ParseBloodType(string(p.BloodType))
		if err != nil {
			return err
		}
		p.BloodType = bt
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return nil
}

// Ask runs one turn and returns the assistant reply.
func (s *Service) Ask(ctx context.Context, question string) (*models.ChatTurn, error) {
	return s.AskWithAck(ctx, question, nil)
}

// AskWithAck is Ask with a hook invoked once the user turn is recorded,
// before any provider work starts. A second question waits until the current
// one has its reply; ctx only bounds that wait.
func (s *Service) AskWithAck(ctx context.Context, question string, ack func(*models.ChatTurn)) (*models.ChatTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.turn }()

	userTurn := models.NewChatTurn(models.RoleUser, question, nil)
	s.appendTurn(userTurn)
	if ack != nil {
		ack(userTurn)
	}

	profile := s.Profile()
	if err := profile.Validate(); err != nil {
		reply := models.NewChatTurn(models.RoleAssistant, ProfilePrompt, nil)
		s.appendTurn(reply)
		return reply, err
	}

	// a queued turn may already be writing memory, so the reply is waited out
	// even when the caller goes away
	res, err := s.turns.Submit(context.WithoutCancel(ctx), question, profile)
	if err != nil {
		s.log.Warn("turn not processed", "error", err)
		reply := models.NewChatTurn(models.RoleAssistant, s.fallback, nil)
		s.appendTurn(reply)
		return reply, fmt.Errorf("submit turn: %w", err)
	}

	var refs []models.SourceRef
	if !res.Failed() {
		refs = retrieval.SourceRefs(res.Context)
	}
	reply := models.NewChatTurn(models.RoleAssistant, res.Answer, refs)
	s.appendTurn(reply)
	return reply, nil
}

// History returns a copy of the transcript in order.
func (s *Service) History() []models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatTurn, 0, len(s.transcript))
	for _, turn := range s.transcript {
		cp := *turn
		cp.References = append([]models.SourceRef(nil), turn.References...)
		if cp.References == nil {
			cp.References = []models.SourceRef{}
		}
		out = append(out, cp)
	}
	return out
}

// LastExchange returns the latest user/assistant pair. It reports false when
// nothing has been answered yet or the latest reply was the profile prompt.
func (s *Service) LastExchange() (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.transcript)
	if n < 2 {
		return Summary{}, false
	}
	question, answer := s.transcript[n-2], s.transcript[n-1]
	if question.Role != models.RoleUser || answer.Role != models.RoleAssistant || answer.Content == ProfilePrompt {
		return Summary{}, false
	}
	refs := append([]models.SourceRef{}, answer.References...)
	return Summary{
		Profile:    s.profile,
		Question:   *question,
		Answer:     *answer,
		References: refs,
	}, true
}

func (s *Service) appendTurn(turn *models.ChatTurn) {
	s.mu.Lock()
	s.transcript = append(s.transcript, turn)
	s.mu.Unlock()
}
