package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Account is a registered company identity that owns orders.
type Account struct {
	ID           pgtype.UUID
	Email        string
	PasswordHash string
	CompanyName  string
	Address      string
	PostalCode   string
	Province     string
	Telephone    string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

const accountColumns = `id, email, password_hash, company_name, address, postal_code, province, telephone, created_at, updated_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.CompanyName,
		&a.Address,
		&a.PostalCode,
		&a.Province,
		&a.Telephone,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// CreateAccountParams carries the registration payload.
type CreateAccountParams struct {
	Email        string
	PasswordHash string
	CompanyName  string
	Address      string
	PostalCode   string
	Province     string
	Telephone    string
}

const createAccount = `
INSERT INTO users (email, password_hash, company_name, address, postal_code, province, telephone)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + accountColumns

// CreateAccount inserts a new account row. A duplicate email surfaces as a
// unique violation (23505) for the caller to translate.
func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRow(ctx, createAccount,
		arg.Email,
		arg.PasswordHash,
		arg.CompanyName,
		arg.Address,
		arg.PostalCode,
		arg.Province,
		arg.Telephone,
	)
	return scanAccount(row)
}

const getAccountByEmail = `
SELECT ` + accountColumns + ` FROM users WHERE email = $1`

// GetAccountByEmail fetches an account by its unique email.
func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByEmail, email))
}

const getAccountByID = `
SELECT ` + accountColumns + ` FROM users WHERE id = $1`

// GetAccountByID fetches an account by primary key.
func (q *Queries) GetAccountByID(ctx context.Context, id pgtype.UUID) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByID, id))
}
