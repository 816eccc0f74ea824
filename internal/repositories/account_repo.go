package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmelker/bastion/internal/database"
	"github.com/nmelker/bastion/internal/models"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var acct models.Account
	err := scanner.Scan(
		&acct.ID, &acct.Username, &acct.Email, &acct.PasswordHash,
		&acct.Status, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &acct, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, username, email, password_hash, status, created_at, updated_at
		FROM accounts WHERE id = $1
	`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `
		SELECT id, username, email, password_hash, status, created_at, updated_at
		FROM accounts WHERE username = $1
	`
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, username, email, password_hash, status, created_at, updated_at
		FROM accounts WHERE email = $1
	`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, acct *models.Account) (*models.Account, error) {
	acct.ID = uuid.New().String()

	now := time.Now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	if acct.Status == "" {
		acct.Status = "active"
	}

	query := `
		INSERT INTO accounts (id, username, email, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, username, email, password_hash, status, created_at, updated_at
	`

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		acct.ID, acct.Username, acct.Email, acct.PasswordHash,
		acct.Status, acct.CreatedAt, acct.UpdatedAt,
	))
}
