package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/integrations/agentapi"
)

const (
	FallbackReply       = "Sorry, I couldn't process that request."
	QuotaExhaustedReply = "Sorry, the assistant has reached its usage limit for now. Please use the contact form to get in touch directly."
	GenericFailureReply = "Sorry, there was an error processing your request. Please try again later."
	NetworkFailureReply = "Sorry, the assistant could not be reached. Please check your connection and try again."
)

// Agent is the remote agent operation consumed by Session.
type Agent interface {
	Ask(ctx context.Context, text string) (agentapi.AgentReply, error)
}

// Session owns one conversation transcript and the single outstanding-request
// slot. It is safe for concurrent use; at most one agent request is in flight
// at a time.
type Session struct {
	agent        Agent
	logger       *slog.Logger
	now          func() time.Time
	onChange     func()
	discardStale bool
	networkReply string

	mu         sync.Mutex
	history    []domain.Message
	busy       bool
	generation uint64
}

type SessionOption func(*Session)

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnChange registers fn to run after every change to history or busy.
// fn runs without the session lock held.
func WithOnChange(fn func()) SessionOption {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithDiscardStale drops replies to requests dispatched before the most recent
// ClearMessages. By default such replies are appended to the cleared history.
func WithDiscardStale(discard bool) SessionOption {
	return func(s *Session) {
		s.discardStale = discard
	}
}

// WithNetworkFailureMessage sets the text shown for FailureNetwork. The default
// is QuotaExhaustedReply, since rate-limited requests often surface as
// transport errors.
func WithNetworkFailureMessage(text string) SessionOption {
	return func(s *Session) {
		if strings.TrimSpace(text) != "" {
			s.networkReply = text
		}
	}
}

func NewSession(agent Agent, opts ...SessionOption) (*Session, error) {
	if agent == nil {
		return nil, errors.New("usecase: agent must not be nil")
	}
	s := &Session{
		agent:        agent,
		logger:       slog.Default(),
		now:          time.Now,
		networkReply: QuotaExhaustedReply,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendMessage records text as a user message and asks the agent for a reply.
// It returns false without touching state when text is blank or another
// request is outstanding. Failures are absorbed into the history as assistant
// messages; SendMessage returns once the reply or error entry is appended.
func (s *Session) SendMessage(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Debug("message rejected while awaiting response")
		return false
	}
	s.busy = true
	s.history = append(s.history, s.newMessage(domain.AuthorUser, "user", text))
	gen := s.generation
	s.mu.Unlock()
	s.notify()

	var reply *domain.Message
	defer func() {
		s.complete(gen, reply)
	}()

	s.logger.Info("sending message to agent")
	out, err := s.agent.Ask(ctx, text)
	if err != nil {
		class := ClassifyFailure(err)
		s.logger.Error("agent request failed", "err", err, "class", class.String())
		m := s.newMessage(domain.AuthorAssistant, "error", s.failureReply(class))
		reply = &m
		return true
	}

	answer := FallbackReply
	if out.Response != nil && *out.Response != "" {
		answer = *out.Response
	}
	m := s.newMessage(domain.AuthorAssistant, "assistant", answer)
	reply = &m
	return true
}

// complete appends reply (unless it is stale and stale replies are discarded)
// and returns the session to idle.
func (s *Session) complete(gen uint64, reply *domain.Message) {
	s.mu.Lock()
	if reply != nil {
		if s.discardStale && gen != s.generation {
			s.logger.Info("discarding reply from cleared conversation")
		} else {
			s.history = append(s.history, *reply)
		}
	}
	s.busy = false
	s.mu.Unlock()
	s.notify()
}

func (s *Session) failureReply(class FailureClass) string {
	switch class {
	case FailureQuotaExhausted:
		return QuotaExhaustedReply
	case FailureNetwork:
		return s.networkReply
	default:
		return GenericFailureReply
	}
}

// ClearMessages empties the history. An outstanding request is not cancelled
// and busy is left unchanged.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.history = nil
	s.generation++
	s.mu.Unlock()
	s.notify()
}

// History returns a copy of the transcript in insertion order.
func (s *Session) History() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Busy reports whether an agent request is outstanding.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("change listener panicked", "panic", r)
		}
	}()
	s.onChange()
}

func (s *Session) newMessage(author domain.Author, prefix, text string) domain.Message {
	return domain.Message{
		ID:        prefix + "-" + newUUID(),
		Text:      text,
		Author:    author,
		CreatedAt: s.now(),
	}
}

var newUUID = func() string {
	return uuid.Must(uuid.NewV7()).String()
}
