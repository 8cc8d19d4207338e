package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/callbackurls/logger"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var _ Sink = new(memorySink)

// memorySink records signals in process. A task accepts any number of
// heartbeats and exactly one success or failure.
type memorySink struct {
	mu        sync.Mutex
	completed *cache.Cache
	signals   []model.Signal
}

func NewMemorySink() *memorySink {
	return &memorySink{
		completed: cache.New(cache.NoExpiration, 0),
	}
}

func (s *memorySink) SendSuccess(ctx context.Context, token string, output string) error {
	return s.complete(model.Signal{Kind: model.SIGNAL_SUCCESS, Token: token, Output: output})
}

func (s *memorySink) SendFailure(ctx context.Context, token string, errorCode string, cause string) error {
	return s.complete(model.Signal{Kind: model.SIGNAL_FAILURE, Token: token, Error: errorCode, Cause: cause})
}

func (s *memorySink) SendHeartbeat(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty task token", ErrInvalidToken)
	}
	if _, done := s.completed.Get(token); done {
		return fmt.Errorf("%w: task already completed", ErrTaskDoesNotExist)
	}
	s.record(model.Signal{Kind: model.SIGNAL_HEARTBEAT, Token: token})
	return nil
}

func (s *memorySink) complete(signal model.Signal) error {
	if signal.Token == "" {
		return fmt.Errorf("%w: empty task token", ErrInvalidToken)
	}
	if err := s.completed.Add(signal.Token, signal.Kind, cache.NoExpiration); err != nil {
		return fmt.Errorf("%w: task already completed", ErrTaskAlreadyCompleted)
	}
	s.record(signal)
	return nil
}

func (s *memorySink) record(signal model.Signal) {
	s.mu.Lock()
	s.signals = append(s.signals, signal)
	s.mu.Unlock()
	logger.Info("signal delivered", zap.String("kind", string(signal.Kind)))
}

// Signals returns a copy of everything delivered so far.
func (s *memorySink) Signals() []model.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}
