/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed to interact with the users,
 * cards, loans, transactions, passkeys, and insights tables.
 *
 * Money-moving methods open an explicit database transaction, lock the
 * payer row, and re-check the live balance before writing, so two
 * interleaved operations can never both pass a stale sufficient-funds check.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenbank/banking-service/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPasskeyNotFound   = errors.New("passkey not found")
	ErrInsightNotFound   = errors.New("insight not found")
)

// recipientColumns whitelists the user columns a recipient identifier may be
// matched against. Anything else is rejected before reaching SQL.
var recipientColumns = map[RecipientField]string{
	RecipientByAccountNumber: "account_number",
	RecipientByEmail:         "email",
	RecipientByPhone:         "phone",
	RecipientByDisplayName:   "display_name",
	RecipientByUsername:      "username",
}

// PostgresRepository is the concrete Repository implementation for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, btrim(username), display_name, email, phone, avatar_url, account_number, cash_balance, kyc_verified, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.Email,
		&user.Phone,
		&user.AvatarURL,
		&user.AccountNumber,
		&user.CashBalance,
		&user.KYCVerified,
		&user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID retrieves a user by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, userID))
}

// FindUsersByField returns the users whose given field matches value,
// case-insensitively, capped at two rows so the caller can detect ambiguity.
func (r *PostgresRepository) FindUsersByField(ctx context.Context, field RecipientField, value string) ([]domain.User, error) {
	column, ok := recipientColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown recipient field %q", field)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE lower(btrim(` + column + `)) = lower(btrim($1)) LIMIT 2`
	rows, err := r.db.Query(ctx, query, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// TransferFunds atomically moves amount between two users' cash balances.
// The sender row is locked and the live balance re-checked inside the
// transaction, so a concurrent operation cannot double-spend the balance.
func (r *PostgresRepository) TransferFunds(ctx context.Context, senderID, recipientID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT cash_balance FROM users WHERE id = $1 FOR UPDATE`, senderID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrUserNotFound
		}
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET cash_balance = cash_balance - $2 WHERE id = $1`, senderID, amount); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE users SET cash_balance = cash_balance + $2 WHERE id = $1`, recipientID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return tx.Commit(ctx)
}

// CreateTransaction appends one immutable ledger row.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, direction, amount, description, counterparty, category, card_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.UserID, t.Direction, t.Amount, t.Description, t.Counterparty, t.Category, t.CardNumber, t.CreatedAt,
	)
	return err
}

const transactionColumns = `id, user_id, direction, amount, description, counterparty, category, card_number, created_at`

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var items []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Direction, &t.Amount, &t.Description, &t.Counterparty, &t.Category, &t.CardNumber, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListTransactionsByUserID returns the user's ledger, newest first.
func (r *PostgresRepository) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// ListTransactionsSince returns the user's ledger rows created at or after
// the given instant, newest first.
func (r *PostgresRepository) ListTransactionsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// CountDebitTransactions counts the user's debit rows across savings and cards.
func (r *PostgresRepository) CountDebitTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND direction = 'debit'`, userID).Scan(&count)
	return count, err
}

// ListCardTransactions returns the ledger rows linked to one card, newest first.
func (r *PostgresRepository) ListCardTransactions(ctx context.Context, userID uuid.UUID, cardNumber string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND card_number = $2 ORDER BY created_at DESC LIMIT $3`
	rows, err := r.db.Query(ctx, query, userID, cardNumber, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const cardColumns = `number, user_id, network, expiry, cvv, credit_limit, credit_balance, apr, statement_balance, minimum_payment, payment_due_date, created_at`

func scanCard(row pgx.Row) (*domain.Card, error) {
	var card domain.Card
	err := row.Scan(
		&card.Number,
		&card.UserID,
		&card.Network,
		&card.Expiry,
		&card.CVV,
		&card.CreditLimit,
		&card.CreditBalance,
		&card.APR,
		&card.StatementBalance,
		&card.MinimumPayment,
		&card.PaymentDueDate,
		&card.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &card, nil
}

// FindCardsByUserID returns every card owned by the user.
func (r *PostgresRepository) FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// FindCardByLastFour retrieves the user's card whose number ends in lastFour.
func (r *PostgresRepository) FindCardByLastFour(ctx context.Context, userID uuid.UUID, lastFour string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_id = $1 AND right(number, 4) = $2`
	return scanCard(r.db.QueryRow(ctx, query, userID, lastFour))
}

// CreateCard persists a newly issued card.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (number, user_id, network, expiry, cvv, credit_limit, credit_balance, apr, statement_balance, minimum_payment, payment_due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		card.Number, card.UserID, card.Network, card.Expiry, card.CVV,
		card.CreditLimit, card.CreditBalance, card.APR, card.StatementBalance,
		card.MinimumPayment, card.PaymentDueDate, card.CreatedAt,
	)
	return err
}

// PayCard atomically debits the user's cash balance and reduces the card's
// credit and statement balances, both floored at zero. The cash balance is
// checked against the live row inside the transaction.
func (r *PostgresRepository) PayCard(ctx context.Context, userID uuid.UUID, cardNumber string, amount int64) (*domain.Card, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT cash_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET cash_balance = cash_balance - $2 WHERE id = $1`, userID, amount); err != nil {
		return nil, err
	}

	query := `
		UPDATE cards
		SET credit_balance = GREATEST(0, credit_balance - $3),
		    statement_balance = GREATEST(0, statement_balance - $3)
		WHERE user_id = $1 AND number = $2
		RETURNING ` + cardColumns
	card, err := scanCard(tx.QueryRow(ctx, query, userID, cardNumber, amount))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return card, nil
}

// ExtendCardDueDate pushes the card's payment due date forward by the given
// duration, measured from the stored due date rather than from now.
func (r *PostgresRepository) ExtendCardDueDate(ctx context.Context, userID uuid.UUID, cardNumber string, by time.Duration) (time.Time, error) {
	query := `
		UPDATE cards
		SET payment_due_date = payment_due_date + ($3 * INTERVAL '1 second')
		WHERE user_id = $1 AND number = $2
		RETURNING payment_due_date
	`
	var due time.Time
	err := r.db.QueryRow(ctx, query, userID, cardNumber, int64(by.Seconds())).Scan(&due)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, ErrAccountNotFound
		}
		return time.Time{}, err
	}
	return due, nil
}

// CutCardStatements snapshots every carrying card's statement balance,
// recomputes the minimum payment, and schedules the next due date. Returns
// the number of cards cut.
func (r *PostgresRepository) CutCardStatements(ctx context.Context, minimumFloor int64, minimumRate float64, dueIn time.Duration) (int64, error) {
	query := `
		UPDATE cards
		SET statement_balance = credit_balance,
		    minimum_payment = GREATEST($1, (credit_balance * $2)::bigint),
		    payment_due_date = NOW() + ($3 * INTERVAL '1 second')
		WHERE credit_balance > 0
	`
	tag, err := r.db.Exec(ctx, query, minimumFloor, minimumRate, int64(dueIn.Seconds()))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const loanColumns = `id, user_id, amount, interest_rate, term_months, monthly_payment, remaining_balance, status, start_date, payment_due_date`

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var loan domain.Loan
	err := row.Scan(
		&loan.ID,
		&loan.UserID,
		&loan.Amount,
		&loan.InterestRate,
		&loan.TermMonths,
		&loan.MonthlyPayment,
		&loan.RemainingBalance,
		&loan.Status,
		&loan.StartDate,
		&loan.PaymentDueDate,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// FindLoansByUserID returns every loan held by the user.
func (r *PostgresRepository) FindLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 ORDER BY start_date`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

// FindLoanByID retrieves one of the user's loans by id.
func (r *PostgresRepository) FindLoanByID(ctx context.Context, userID uuid.UUID, loanID uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 AND id = $2`
	return scanLoan(r.db.QueryRow(ctx, query, userID, loanID))
}

// CreateLoanAndCreditPrincipal persists an approved loan and credits the
// principal to the borrower's cash balance in the same transaction, so a
// loan can never exist without its disbursement.
func (r *PostgresRepository) CreateLoanAndCreditPrincipal(ctx context.Context, loan *domain.Loan) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO loans (id, user_id, amount, interest_rate, term_months, monthly_payment, remaining_balance, status, start_date, payment_due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.Exec(ctx, query,
		loan.ID, loan.UserID, loan.Amount, loan.InterestRate, loan.TermMonths,
		loan.MonthlyPayment, loan.RemainingBalance, loan.Status, loan.StartDate, loan.PaymentDueDate,
	); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET cash_balance = cash_balance + $2 WHERE id = $1`, loan.UserID, loan.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return tx.Commit(ctx)
}

// PayLoan atomically debits the user's cash balance and reduces the loan's
// remaining balance, floored at zero. When the balance reaches zero the
// status flips to paid_off as part of the same update.
func (r *PostgresRepository) PayLoan(ctx context.Context, userID uuid.UUID, loanID uuid.UUID, amount int64) (*domain.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT cash_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET cash_balance = cash_balance - $2 WHERE id = $1`, userID, amount); err != nil {
		return nil, err
	}

	query := `
		UPDATE loans
		SET remaining_balance = GREATEST(0, remaining_balance - $3),
		    status = CASE WHEN remaining_balance - $3 <= 0 THEN 'paid_off' ELSE status END
		WHERE user_id = $1 AND id = $2
		RETURNING ` + loanColumns
	loan, err := scanLoan(tx.QueryRow(ctx, query, userID, loanID, amount))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return loan, nil
}

// ExtendLoanDueDate pushes the loan's payment due date forward by the given
// duration, measured from the stored due date rather than from now.
func (r *PostgresRepository) ExtendLoanDueDate(ctx context.Context, userID uuid.UUID, loanID uuid.UUID, by time.Duration) (time.Time, error) {
	query := `
		UPDATE loans
		SET payment_due_date = payment_due_date + ($3 * INTERVAL '1 second')
		WHERE user_id = $1 AND id = $2
		RETURNING payment_due_date
	`
	var due time.Time
	err := r.db.QueryRow(ctx, query, userID, loanID, int64(by.Seconds())).Scan(&due)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, ErrAccountNotFound
		}
		return time.Time{}, err
	}
	return due, nil
}

// ListPasskeysByUserID returns the user's registered passkey credentials.
func (r *PostgresRepository) ListPasskeysByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Passkey, error) {
	query := `SELECT credential_id, user_id, created_at FROM passkeys WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.Passkey
	for rows.Next() {
		var k domain.Passkey
		if err := rows.Scan(&k.CredentialID, &k.UserID, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CreatePasskey binds a new credential identifier to a user.
func (r *PostgresRepository) CreatePasskey(ctx context.Context, passkey *domain.Passkey) error {
	query := `INSERT INTO passkeys (credential_id, user_id, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, passkey.CredentialID, passkey.UserID, passkey.CreatedAt)
	return err
}

// DeletePasskey removes one credential. Returns false when nothing matched.
func (r *PostgresRepository) DeletePasskey(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM passkeys WHERE user_id = $1 AND credential_id = $2`, userID, credentialID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetCachedInsight fetches the user's "latest" insights document.
func (r *PostgresRepository) GetCachedInsight(ctx context.Context, userID uuid.UUID) (*domain.CachedInsight, error) {
	var raw []byte
	insight := domain.CachedInsight{UserID: userID}
	query := `SELECT data, updated_at FROM insights WHERE user_id = $1 AND key = 'latest'`
	err := r.db.QueryRow(ctx, query, userID).Scan(&raw, &insight.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &insight.Data); err != nil {
		return nil, fmt.Errorf("decode cached insight: %w", err)
	}
	return &insight, nil
}

// UpsertCachedInsight writes the user's "latest" insights document.
func (r *PostgresRepository) UpsertCachedInsight(ctx context.Context, insight *domain.CachedInsight) error {
	raw, err := json.Marshal(insight.Data)
	if err != nil {
		return fmt.Errorf("encode cached insight: %w", err)
	}
	query := `
		INSERT INTO insights (user_id, key, data, updated_at)
		VALUES ($1, 'latest', $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Exec(ctx, query, insight.UserID, raw, insight.UpdatedAt)
	return err
}

// DeleteCachedInsight invalidates the user's insights document. Deleting an
// absent row is not an error; absence means "not yet computed".
func (r *PostgresRepository) DeleteCachedInsight(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM insights WHERE user_id = $1 AND key = 'latest'`, userID)
	return err
}
