package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

type insightsRepoStub struct {
	store.Repository

	cached     *domain.CachedInsight
	debitCount int

	transactions []domain.Transaction
	sinceArg     time.Time

	upserted *domain.CachedInsight
	deleted  bool
}

func (s *insightsRepoStub) GetCachedInsight(ctx context.Context, userID uuid.UUID) (*domain.CachedInsight, error) {
	if s.cached == nil {
		return nil, store.ErrInsightNotFound
	}
	return s.cached, nil
}

func (s *insightsRepoStub) CountDebitTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.debitCount, nil
}

func (s *insightsRepoStub) ListTransactionsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.Transaction, error) {
	s.sinceArg = since
	return s.transactions, nil
}

func (s *insightsRepoStub) UpsertCachedInsight(ctx context.Context, insight *domain.CachedInsight) error {
	s.upserted = insight
	return nil
}

func (s *insightsRepoStub) DeleteCachedInsight(ctx context.Context, userID uuid.UUID) error {
	s.deleted = true
	s.cached = nil
	return nil
}

type analyzerStub struct {
	calls    int
	language string
	result   *domain.InsightsData
	err      error
}

func (a *analyzerStub) AnalyzeSpending(ctx context.Context, language string, transactions []domain.Transaction) (*domain.InsightsData, error) {
	a.calls++
	a.language = language
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func sampleInsights() *domain.InsightsData {
	return &domain.InsightsData{
		SpendingByCategory: map[string]int64{"groceries": 200_00},
		OverallChangePct:   4.2,
	}
}

func TestLoadOrGenerate_CacheHitSkipsAnalysis(t *testing.T) {
	userID := uuid.New()
	repo := &insightsRepoStub{
		cached: &domain.CachedInsight{
			UserID: userID,
			Data:   map[string]domain.InsightsData{"en": *sampleInsights()},
		},
	}
	analyzer := &analyzerStub{}
	svc := NewInsightsService(repo, analyzer, nil)

	data, err := svc.LoadOrGenerate(context.Background(), userID, "en")
	if err != nil {
		t.Fatalf("LoadOrGenerate returned error: %v", err)
	}
	if data == nil || data.OverallChangePct != 4.2 {
		t.Fatalf("expected the cached insights, got %+v", data)
	}
	if analyzer.calls != 0 {
		t.Fatal("a cache hit must not run analysis")
	}
}

func TestLoadOrGenerate_TooFewDebits(t *testing.T) {
	repo := &insightsRepoStub{debitCount: 2}
	analyzer := &analyzerStub{}
	svc := NewInsightsService(repo, analyzer, nil)

	data, err := svc.LoadOrGenerate(context.Background(), uuid.New(), "en")
	if err != nil {
		t.Fatalf("LoadOrGenerate returned error: %v", err)
	}
	if data != nil {
		t.Fatal("expected nil insights with too little history")
	}
	if analyzer.calls != 0 {
		t.Fatal("sparse history must not trigger an analysis call")
	}
}

func TestLoadOrGenerate_GeneratesAndPersists(t *testing.T) {
	userID := uuid.New()
	repo := &insightsRepoStub{debitCount: 10}
	analyzer := &analyzerStub{result: sampleInsights()}
	svc := NewInsightsService(repo, analyzer, nil)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	data, err := svc.LoadOrGenerate(context.Background(), userID, "en")
	if err != nil {
		t.Fatalf("LoadOrGenerate returned error: %v", err)
	}
	if data == nil {
		t.Fatal("expected generated insights")
	}
	if analyzer.calls != 1 || analyzer.language != "en" {
		t.Fatalf("expected one analysis call in en, got %d in %q", analyzer.calls, analyzer.language)
	}
	want := now.Add(-60 * 24 * time.Hour)
	if !repo.sinceArg.Equal(want) {
		t.Fatalf("expected a 60-day window from %s, got %s", want, repo.sinceArg)
	}
	if repo.upserted == nil {
		t.Fatal("expected the generated insights to be persisted")
	}
	if _, ok := repo.upserted.Data["en"]; !ok {
		t.Fatal("persisted cache is missing the generated language")
	}
}

func TestLoadOrGenerate_KeepsOtherLanguages(t *testing.T) {
	userID := uuid.New()
	repo := &insightsRepoStub{
		debitCount: 10,
		cached: &domain.CachedInsight{
			UserID: userID,
			Data:   map[string]domain.InsightsData{"es": {OverallChangePct: 1.5}},
		},
	}
	analyzer := &analyzerStub{result: sampleInsights()}
	svc := NewInsightsService(repo, analyzer, nil)

	if _, err := svc.LoadOrGenerate(context.Background(), userID, "en"); err != nil {
		t.Fatalf("LoadOrGenerate returned error: %v", err)
	}
	if repo.upserted == nil {
		t.Fatal("expected an upsert")
	}
	if _, ok := repo.upserted.Data["es"]; !ok {
		t.Fatal("regenerating one language must not drop the others")
	}
	if _, ok := repo.upserted.Data["en"]; !ok {
		t.Fatal("persisted cache is missing the generated language")
	}
}

func TestLoadOrGenerate_InProgressGuard(t *testing.T) {
	userID := uuid.New()
	repo := &insightsRepoStub{debitCount: 10}
	analyzer := &analyzerStub{result: sampleInsights()}
	svc := NewInsightsService(repo, analyzer, nil)
	svc.inProgress[userID] = true

	data, err := svc.LoadOrGenerate(context.Background(), userID, "en")
	if err != nil {
		t.Fatalf("LoadOrGenerate returned error: %v", err)
	}
	if data != nil {
		t.Fatal("a caller arriving mid-generation should get nothing")
	}
	if analyzer.calls != 0 {
		t.Fatal("the in-progress guard must prevent a second analysis call")
	}
}

func TestRefresh_InvalidatesAndRegenerates(t *testing.T) {
	userID := uuid.New()
	repo := &insightsRepoStub{
		debitCount: 10,
		cached: &domain.CachedInsight{
			UserID: userID,
			Data:   map[string]domain.InsightsData{"en": {OverallChangePct: 9.9}},
		},
	}
	analyzer := &analyzerStub{result: sampleInsights()}
	svc := NewInsightsService(repo, analyzer, nil)

	data, err := svc.Refresh(context.Background(), userID, "en")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if !repo.deleted {
		t.Fatal("Refresh must invalidate the persisted cache")
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected a fresh analysis, got %d calls", analyzer.calls)
	}
	if data == nil || data.OverallChangePct != 4.2 {
		t.Fatalf("expected regenerated insights, got %+v", data)
	}
}

func TestExisting_ReturnsNilWithoutGenerating(t *testing.T) {
	repo := &insightsRepoStub{debitCount: 10}
	analyzer := &analyzerStub{result: sampleInsights()}
	svc := NewInsightsService(repo, analyzer, nil)

	data, err := svc.Existing(context.Background(), uuid.New(), "en")
	if err != nil {
		t.Fatalf("Existing returned error: %v", err)
	}
	if data != nil {
		t.Fatal("expected nil when nothing is cached")
	}
	if analyzer.calls != 0 {
		t.Fatal("Existing must never run analysis")
	}
}
