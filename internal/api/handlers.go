package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mediguide/internal/models"
	"mediguide/internal/service/assistant"
	"mediguide/internal/worker"
)

const (
	defaultRevealStep  = 4
	defaultRevealDelay = 30 * time.Millisecond
)

// Handler wires HTTP routes to the consultation session.
type Handler struct {
	session     *assistant.Service
	revealStep  int
	revealDelay time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(session *assistant.Service) *Handler {
	return &Handler{
		session:     session,
		revealStep:  defaultRevealStep,
		revealDelay: defaultRevealDelay,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api := router.Group("/api")
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.updateProfile)
	api.POST("/conversation/msg", h.captureInput)
	api.GET("/conversation/messages", h.getMessages)
	api.GET("/conversation/summary", h.getSummary)
}

type profileView struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	BloodType string `json:"blood_type"`
	Complete  bool   `json:"complete"`
}

func toProfileView(p models.UserProfile) profileView {
	view := profileView{Name: p.Name, BloodType: string(p.BloodType), Complete: p.Complete()}
	if !p.Birthdate.IsZero() {
		view.Birthdate = p.Birthdate.Format(models.BirthdateLayout)
	}
	return view
}

func (h *Handler) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, toProfileView(h.session.Profile()))
}

type profileRequest struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	BloodType string `json:"blood_type"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile := models.UserProfile{Name: req.Name, BloodType: models.BloodType(req.BloodType)}
	if strings.TrimSpace(req.Birthdate) != "" {
		birth, err := time.Parse(models.BirthdateLayout, strings.TrimSpace(req.Birthdate))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "birthdate must be YYYY-MM-DD"})
			return
		}
		profile.Birthdate = birth
	}
	if err := h.session.UpdateProfile(profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toProfileView(h.session.Profile()))
}

type referenceView struct {
	ID         string `json:"id"`
	Department string `json:"department"`
	Symptom    string `json:"symptom"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

func toReferenceViews(refs []models.SourceRef) []referenceView {
	views := make([]referenceView, 0, len(refs))
	for _, ref := range refs {
		views = append(views, referenceView{
			ID:         ref.ID,
			Department: ref.Department,
			Symptom:    ref.Symptom,
			Question:   ref.QuestionText,
			Answer:     ref.DisplayAnswer(),
		})
	}
	return views
}

func turnPayload(turn models.ChatTurn) gin.H {
	return gin.H{
		"id":         turn.ID,
		"role":       turn.Role,
		"content":    turn.Content,
		"references": toReferenceViews(turn.References),
		"created_at": turn.CreatedAt,
	}
}

func (h *Handler) getMessages(c *gin.Context) {
	history := h.session.History()
	messages := make([]gin.H, 0, len(history))
	for _, turn := range history {
		messages = append(messages, turnPayload(turn))
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) getSummary(c *gin.Context) {
	summary, ok := h.session.LastExchange()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no consultation yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":    toProfileView(summary.Profile),
		"question":   turnPayload(summary.Question),
		"answer":     turnPayload(summary.Answer),
		"references": toReferenceViews(summary.References),
	})
}

type inputRequest struct {
	Content string `json:"content"`
}

func (h *Handler) captureInput(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": assistant.ErrEmptyQuestion.Error()})
		return
	}

	// SSE Request construction
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		var data []byte
		switch v := payload.(type) {
		case string:
			data = []byte(v)
		default:
			var err error
			data, err = json.Marshal(v)
			if err != nil {
				return err
			}
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	var userTurn models.ChatTurn
	reply, err := h.session.AskWithAck(c.Request.Context(), req.Content, func(turn *models.ChatTurn) {
		userTurn = *turn
		_ = sendEvent("ack", gin.H{"message": turnPayload(userTurn)})
	})
	switch {
	case errors.Is(err, models.ErrProfileIncomplete):
		_ = sendEvent("done", gin.H{
			"user_message":       turnPayload(userTurn),
			"ai_message":         turnPayload(*reply),
			"profile_incomplete": true,
		})
		return
	case err != nil:
		msg := err.Error()
		if errors.Is(err, worker.ErrQueueFull) {
			msg = "server is busy, please retry"
		}
		_ = sendEvent("error", gin.H{"message": msg})
		return
	}

	if err := h.reveal(c, reply.Content, func(prefix string) error {
		return sendEvent("stream", gin.H{"content": prefix})
	}); err != nil {
		return
	}
	_ = sendEvent("done", gin.H{
		"user_message": turnPayload(userTurn),
		"ai_message":   turnPayload(*reply),
	})
}

// reveal emits growing prefixes of answer a few runes at a time.
func (h *Handler) reveal(c *gin.Context, answer string, emit func(string) error) error {
	runes := []rune(answer)
	step := h.revealStep
	if step <= 0 {
		step = len(runes)
	}
	for end := step; ; end += step {
		if end > len(runes) {
			end = len(runes)
		}
		if err := emit(string(runes[:end])); err != nil {
			return err
		}
		if end == len(runes) {
			return nil
		}
		if h.revealDelay > 0 {
			select {
			case <-c.Request.Context().Done():
				return c.Request.Context().Err()
			case <-time.After(h.revealDelay):
			}
		}
	}
}
