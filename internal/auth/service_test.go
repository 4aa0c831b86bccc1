package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/arkan-dz/backend-order/internal/common"
	"github.com/arkan-dz/backend-order/internal/store"
)

type fakeQueries struct {
	store.Querier

	accounts map[string]store.Account

	createErr error
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{accounts: map[string]store.Account{}}
}

func (f *fakeQueries) CreateAccount(_ context.Context, arg store.CreateAccountParams) (store.Account, error) {
	if f.createErr != nil {
		return store.Account{}, f.createErr
	}
	if _, exists := f.accounts[arg.Email]; exists {
		return store.Account{}, &pgconn.PgError{Code: "23505"}
	}
	account := store.Account{
		ID:           mustUUID(f.nextID()),
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		CompanyName:  arg.CompanyName,
		Address:      arg.Address,
		PostalCode:   arg.PostalCode,
		Province:     arg.Province,
		Telephone:    arg.Telephone,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	f.accounts[arg.Email] = account
	return account, nil
}

func (f *fakeQueries) GetAccountByEmail(_ context.Context, email string) (store.Account, error) {
	account, ok := f.accounts[email]
	if !ok {
		return store.Account{}, pgx.ErrNoRows
	}
	return account, nil
}

func (f *fakeQueries) GetAccountByID(_ context.Context, id pgtype.UUID) (store.Account, error) {
	for _, account := range f.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return store.Account{}, pgx.ErrNoRows
}

func (f *fakeQueries) nextID() string {
	return "11111111-2222-3333-4444-555566667777"
}

func mustUUID(value string) pgtype.UUID {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		panic(err)
	}
	return id
}

func newTestService(t *testing.T, queries store.Querier) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Queries:        queries,
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
		Issuer:         "backend-order",
		Audience:       "order-frontend",
	})
	require.NoError(t, err)
	return svc
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Email:       "acme@example.com",
		Password:    "s3cret-pass",
		CompanyName: "Acme Foods",
		Address:     "Jl. Melati 1",
		PostalCode:  "40115",
		Province:    "Jawa Barat",
		Telephone:   "0812000111",
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc := newTestService(t, newFakeQueries())

	input := validRegisterInput()
	input.CompanyName = ""
	input.Telephone = ""

	_, err := svc.Register(context.Background(), input)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeMissingFields, appErr.Code)
	require.Equal(t, 400, appErr.HTTPStatus)

	fields, ok := appErr.Details.([]string)
	require.True(t, ok)
	require.Contains(t, fields, "companyname")
	require.Contains(t, fields, "telephone")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	queries := newFakeQueries()
	svc := newTestService(t, queries)

	_, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validRegisterInput())
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeUserExists, appErr.Code)
	require.Equal(t, 400, appErr.HTTPStatus)
}

func TestRegisterReturnsUsableToken(t *testing.T) {
	queries := newFakeQueries()
	svc := newTestService(t, queries)

	result, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, "acme@example.com", result.Account.Email)
	require.NotEmpty(t, result.Account.ID)

	subject, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.Account.ID, subject)
}

func TestLogin(t *testing.T) {
	queries := newFakeQueries()
	hash, err := argon2id.CreateHash("correct-horse", argon2id.DefaultParams)
	require.NoError(t, err)
	queries.accounts["acme@example.com"] = store.Account{
		ID:           mustUUID("11111111-2222-3333-4444-555566667777"),
		Email:        "acme@example.com",
		PasswordHash: hash,
		CompanyName:  "Acme Foods",
	}
	svc := newTestService(t, queries)

	t.Run("success", func(t *testing.T) {
		result, err := svc.Login(context.Background(), "Acme@Example.com", "correct-horse")
		require.NoError(t, err)
		require.NotEmpty(t, result.AccessToken)
		require.Equal(t, "acme@example.com", result.Account.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "acme@example.com", "battery-staple")
		appErr, ok := common.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, common.CodeUnauthorized, appErr.Code)
		require.Equal(t, 401, appErr.HTTPStatus)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "nobody@example.com", "correct-horse")
		appErr, ok := common.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, common.CodeUnauthorized, appErr.Code)
	})
}

func TestParseAccessTokenExpired(t *testing.T) {
	svc := newTestService(t, newFakeQueries())

	past := time.Now().Add(-48 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	token, _, err := svc.signAccessToken("11111111-2222-3333-4444-555566667777")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(token)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeUnauthorized, appErr.Code)
}

func TestParseAccessTokenGarbage(t *testing.T) {
	svc := newTestService(t, newFakeQueries())
	_, err := svc.ParseAccessToken("not-a-token")
	require.Error(t, err)
}
