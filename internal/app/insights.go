/**
 * @description
 * Lazily computed, persisted per-user spending insights. Generation runs a
 * batch AI analysis over the trailing sixty days of transactions and caches
 * the result under the "latest" key, one entry per language. A per-user
 * in-progress flag prevents overlapping generation calls; a caller arriving
 * while one is running gets nothing rather than a second AI call.
 */

package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
	"github.com/lumenbank/banking-service/pkg/rabbitmq"
)

const (
	insightsWindow       = 60 * 24 * time.Hour
	minDebitTransactions = 3
)

// SpendingAnalyzer is the batch AI analysis behind insights generation.
type SpendingAnalyzer interface {
	AnalyzeSpending(ctx context.Context, language string, transactions []domain.Transaction) (*domain.InsightsData, error)
}

// InsightsService owns the per-user insights cache.
type InsightsService struct {
	repo     store.Repository
	analyzer SpendingAnalyzer
	events   rabbitmq.Publisher
	now      func() time.Time

	mu         sync.Mutex
	inProgress map[uuid.UUID]bool
}

// NewInsightsService creates a new insights cache service.
func NewInsightsService(repo store.Repository, analyzer SpendingAnalyzer, events rabbitmq.Publisher) *InsightsService {
	return &InsightsService{
		repo:       repo,
		analyzer:   analyzer,
		events:     events,
		now:        time.Now,
		inProgress: make(map[uuid.UUID]bool),
	}
}

// LoadOrGenerate returns the cached insights for the user and language,
// generating and persisting them when absent. A nil result with a nil error
// means "nothing to show": too little history, or a generation already in
// flight for this user.
func (s *InsightsService) LoadOrGenerate(ctx context.Context, userID uuid.UUID, language string) (*domain.InsightsData, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	cached, err := s.repo.GetCachedInsight(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrInsightNotFound) {
		return nil, err
	}
	if cached != nil {
		if data, ok := cached.Data[language]; ok {
			return &data, nil
		}
	}

	if !s.begin(userID) {
		return nil, nil
	}
	defer s.end(userID)

	debits, err := s.repo.CountDebitTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if debits < minDebitTransactions {
		// Not an error: there is simply not enough history to analyze.
		return nil, nil
	}

	since := s.now().UTC().Add(-insightsWindow)
	transactions, err := s.repo.ListTransactionsSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	data, err := s.analyzer.AnalyzeSpending(ctx, language, transactions)
	if err != nil {
		return nil, err
	}

	next := &domain.CachedInsight{
		UserID:    userID,
		Data:      map[string]domain.InsightsData{language: *data},
		UpdatedAt: s.now().UTC(),
	}
	if cached != nil {
		for lang, existing := range cached.Data {
			if lang != language {
				next.Data[lang] = existing
			}
		}
	}
	if err := s.repo.UpsertCachedInsight(ctx, next); err != nil {
		log.Printf("level=warn component=insights msg=\"cache persist failed\" user_id=%s err=%v", userID, err)
	}

	return data, nil
}

// Existing returns the cached insights for the user and language without
// triggering generation. A nil result with a nil error means no insights
// have been generated yet for that language.
func (s *InsightsService) Existing(ctx context.Context, userID uuid.UUID, language string) (*domain.InsightsData, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	cached, err := s.repo.GetCachedInsight(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrInsightNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if data, ok := cached.Data[language]; ok {
		return &data, nil
	}
	return nil, nil
}

// Refresh unconditionally invalidates the persisted cache and regenerates.
func (s *InsightsService) Refresh(ctx context.Context, userID uuid.UUID, language string) (*domain.InsightsData, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	if err := s.repo.DeleteCachedInsight(ctx, userID); err != nil {
		return nil, err
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, rabbitmq.BankEventsExchange, "insight.invalidated", map[string]interface{}{
			"user_id": userID,
		}); err != nil {
			log.Printf("level=warn component=insights msg=\"invalidation event publish failed\" user_id=%s err=%v", userID, err)
		}
	}

	return s.LoadOrGenerate(ctx, userID, language)
}

func (s *InsightsService) begin(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress[userID] {
		return false
	}
	s.inProgress[userID] = true
	return true
}

func (s *InsightsService) end(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inProgress, userID)
}
