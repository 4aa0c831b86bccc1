package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/arkan-dz/backend-order/internal/common"
	"github.com/arkan-dz/backend-order/internal/store"
)

const defaultAccessTTL = 24 * time.Hour

// Service authenticates company accounts and issues access tokens.
type Service struct {
	queries   store.Querier
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
	validate  *validator.Validate
}

// Config configures the auth service.
type Config struct {
	Queries        store.Querier
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// Account is the safe subset of the user model returned to clients.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	CompanyName string    `json:"company_name"`
	Address     string    `json:"address"`
	PostalCode  string    `json:"postal_code"`
	Province    string    `json:"province"`
	Telephone   string    `json:"telephone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RegisterInput carries the registration payload. Every profile field is
// required; blanks are reported together under MISSING_FIELDS.
type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	CompanyName string `json:"company_name" validate:"required"`
	Address     string `json:"address" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Province    string `json:"province" validate:"required"`
	Telephone   string `json:"telephone" validate:"required"`
}

// TokenResult bundles an account with its freshly signed access token.
type TokenResult struct {
	Account     Account   `json:"user"`
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("auth: queries is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-order"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "order-frontend"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		queries:   cfg.Queries,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		validate:  validator.New(),
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new account and signs its first access token.
func (s *Service) Register(ctx context.Context, input RegisterInput) (TokenResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		fields := []string{}
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
		}
		return TokenResult{}, &common.AppError{
			Code:       common.CodeMissingFields,
			Message:    "All fields are required",
			HTTPStatus: http.StatusBadRequest,
			Details:    fields,
		}
	}

	hash, err := argon2id.CreateHash(input.Password, argon2id.DefaultParams)
	if err != nil {
		return TokenResult{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.queries.CreateAccount(ctx, store.CreateAccountParams{
		Email:        input.Email,
		PasswordHash: hash,
		CompanyName:  strings.TrimSpace(input.CompanyName),
		Address:      strings.TrimSpace(input.Address),
		PostalCode:   strings.TrimSpace(input.PostalCode),
		Province:     strings.TrimSpace(input.Province),
		Telephone:    strings.TrimSpace(input.Telephone),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return TokenResult{}, common.NewAppError(common.CodeUserExists, "User already exists", http.StatusBadRequest, err)
		}
		return TokenResult{}, fmt.Errorf("create account: %w", err)
	}

	return s.tokenResultFor(created)
}

// Login verifies credentials and issues a fresh access token.
func (s *Service) Login(ctx context.Context, email, password string) (TokenResult, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || password == "" {
		return TokenResult{}, common.Unauthorized("Invalid credentials")
	}

	account, err := s.queries.GetAccountByEmail(ctx, normalized)
	if err != nil {
		return TokenResult{}, common.Unauthorized("Invalid credentials")
	}

	ok, err := argon2id.ComparePasswordAndHash(password, account.PasswordHash)
	if err != nil || !ok {
		return TokenResult{}, common.Unauthorized("Invalid credentials")
	}

	return s.tokenResultFor(account)
}

// Me fetches the currently authenticated account.
func (s *Service) Me(ctx context.Context, accountID string) (Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return Account{}, common.Unauthorized("unauthorized")
	}
	id, err := store.ParseUUID(accountID)
	if err != nil {
		return Account{}, common.Unauthorized("unauthorized")
	}
	account, err := s.queries.GetAccountByID(ctx, id)
	if err != nil {
		return Account{}, common.Unauthorized("unauthorized")
	}
	return convertAccount(account), nil
}

// ParseAccessToken validates an access token and returns the subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.Unauthorized("missing token")
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, err)
	}
	return parsed.Subject(), nil
}

func (s *Service) tokenResultFor(account store.Account) (TokenResult, error) {
	accountID := store.UUIDString(account.ID)
	if accountID == "" {
		return TokenResult{}, errors.New("auth: invalid account identifier")
	}
	token, expiresAt, err := s.signAccessToken(accountID)
	if err != nil {
		return TokenResult{}, fmt.Errorf("sign access token: %w", err)
	}
	return TokenResult{
		Account:     convertAccount(account),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) signAccessToken(accountID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(accountID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func convertAccount(a store.Account) Account {
	return Account{
		ID:          store.UUIDString(a.ID),
		Email:       a.Email,
		CompanyName: a.CompanyName,
		Address:     a.Address,
		PostalCode:  a.PostalCode,
		Province:    a.Province,
		Telephone:   a.Telephone,
		CreatedAt:   store.TimeValue(a.CreatedAt),
		UpdatedAt:   store.TimeValue(a.UpdatedAt),
	}
}

