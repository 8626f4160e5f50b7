/**
 * @description
 * The monthly statement-cut job. Each run snapshots every carrying card's
 * statement balance from its live credit balance, recomputes the minimum
 * payment, and schedules the next due date. Registered with the in-process
 * cron scheduler at startup.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/lumenbank/banking-service/internal/store"
)

const (
	statementMinimumFloor = 25_00  // $25 minimum payment floor
	statementMinimumRate  = 0.02   // 2% of the statement balance
	statementDueIn        = 21 * 24 * time.Hour
	statementJobTimeout   = 2 * time.Minute
)

// StatementJob cuts card statements on a schedule.
type StatementJob struct {
	repo store.Repository
}

// NewStatementJob creates the statement-cut job.
func NewStatementJob(repo store.Repository) *StatementJob {
	return &StatementJob{repo: repo}
}

// Run performs one statement cut across all cards. Signature is
// parameterless so it can be registered directly with the cron scheduler.
func (j *StatementJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), statementJobTimeout)
	defer cancel()

	cut, err := j.repo.CutCardStatements(ctx, statementMinimumFloor, statementMinimumRate, statementDueIn)
	if err != nil {
		log.Printf("level=error component=statement_job msg=\"statement cut failed\" err=%v", err)
		return
	}
	log.Printf("level=info component=statement_job msg=\"statement cut complete\" cards=%d", cut)
}
