// Package service holds the session core: registration, login and refresh
// token rotation on top of the credential store and the token codec.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/krisefikser/internal/model"
	"github.com/iliyamo/krisefikser/internal/queue"
	"github.com/iliyamo/krisefikser/internal/repository"
	"github.com/iliyamo/krisefikser/internal/token"
)

// UserStore is the user side of the credential store.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// RoleStore looks up seeded roles.
type RoleStore interface {
	FindByName(ctx context.Context, name model.RoleName) (model.Role, error)
}

// RefreshTokenStore persists refresh tokens by hash.  DeleteByHash and
// Rotate return repository.ErrNotFound when the row is already gone.
type RefreshTokenStore interface {
	Store(ctx context.Context, t model.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	Rotate(ctx context.Context, oldHash string, next model.RefreshToken) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs fn in one store transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PasswordHasher is a one-way salted hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

// EventPublisher receives session events.  Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// CaptchaVerifier is the human check consulted before register and login.
type CaptchaVerifier interface {
	Verify(ctx context.Context, captchaToken string) (bool, error)
}

// Tokens is the pair returned to clients by register, login and refresh.
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	CaptchaToken string
}

// Deps wires a SessionService.  Events, Captcha, Logger and Now are optional.
type Deps struct {
	Users   UserStore
	Roles   RoleStore
	Tokens  RefreshTokenStore
	Tx      Transactor
	Hasher  PasswordHasher
	Codec   *token.Codec
	Events  EventPublisher
	Captcha CaptchaVerifier
	Logger  *slog.Logger
	Now     func() time.Time
}

// SessionService implements register, login, refresh and logout.
type SessionService struct {
	users   UserStore
	roles   RoleStore
	tokens  RefreshTokenStore
	tx      Transactor
	hasher  PasswordHasher
	codec   *token.Codec
	events  EventPublisher
	captcha CaptchaVerifier
	log     *slog.Logger
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewSessionService panics when a required dependency is missing.
func NewSessionService(d Deps) *SessionService {
	if d.Users == nil || d.Roles == nil || d.Tokens == nil || d.Tx == nil || d.Hasher == nil || d.Codec == nil {
		panic("nil dependency passed to NewSessionService")
	}
	s := &SessionService{
		users:   d.Users,
		roles:   d.Roles,
		tokens:  d.Tokens,
		tx:      d.Tx,
		hasher:  d.Hasher,
		codec:   d.Codec,
		events:  d.Events,
		captcha: d.Captcha,
		log:     d.Logger,
		now:     d.Now,
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register creates a USER account and opens its first session.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (Tokens, error) {
	if err := s.checkCaptcha(ctx, in.CaptchaToken); err != nil {
		return Tokens{}, err
	}
	return s.register(ctx, in, model.RoleUser)
}

// RegisterAdmin creates an ADMIN account.  Route it behind a SUPER_ADMIN
// guard; it skips the captcha gate.
func (s *SessionService) RegisterAdmin(ctx context.Context, in RegisterInput) (Tokens, error) {
	return s.register(ctx, in, model.RoleAdmin)
}

func (s *SessionService) register(ctx context.Context, in RegisterInput, role model.RoleName) (Tokens, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateRegistration(in); err != nil {
		return Tokens{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Tokens{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		ID:           uuid.New(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Roles:        []model.RoleName{role},
	}

	var out Tokens
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailAlreadyExists
		}
		if _, err := s.roles.FindByName(ctx, role); err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return ErrEmailAlreadyExists
			}
			return err
		}
		out, err = s.openSession(ctx, u)
		return err
	})
	if err != nil {
		return Tokens{}, err
	}

	s.log.Info("user registered", "user_id", u.ID, "role", role)
	s.publish(ctx, queue.EventUserRegistered, u)
	return out, nil
}

func validateRegistration(in RegisterInput) error {
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if in.FirstName == "" || in.LastName == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	return nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(pw) > 72 {
		// bcrypt ignores everything past 72 bytes
		return fmt.Errorf("%w: password is longer than 72 bytes", ErrInvalidInput)
	}
	return nil
}

// Login verifies the password and opens a new, independent session.
// Unknown e-mail and wrong password both return ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password, captchaToken string) (Tokens, error) {
	if err := s.checkCaptcha(ctx, captchaToken); err != nil {
		return Tokens{}, err
	}
	u, err := s.users.FindByEmail(ctx, repository.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		// Burn a comparison so response time does not reveal the miss.
		s.hasher.Matches(password, s.dummy())
		return Tokens{}, ErrInvalidCredentials
	}
	if err != nil {
		return Tokens{}, err
	}
	if !s.hasher.Matches(password, u.PasswordHash) {
		return Tokens{}, ErrInvalidCredentials
	}

	out, err := s.openSession(ctx, u)
	if err != nil {
		return Tokens{}, err
	}
	s.publish(ctx, queue.EventUserLoggedIn, u)
	return out, nil
}

// fallbackDummyHash is a valid bcrypt digest compared against when the
// hasher cannot produce a fresh one.
const fallbackDummyHash = "$2a$10$dXJ3SW6G7P50lGmMkkmwe.20cQQubK3.HZWzG3YB1tlRy.fqvM/BG"

func (s *SessionService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil || h == "" {
			s.log.Warn("dummy password hash failed, using fallback", "err", err)
			h = fallbackDummyHash
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Refresh exchanges a stored refresh token for a new pair.  The presented
// row is deleted and the new one inserted in one transaction, so of several
// concurrent calls with the same token exactly one succeeds.
func (s *SessionService) Refresh(ctx context.Context, presented string) (Tokens, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return Tokens{}, ErrRefreshTokenNotFound
	}
	hash := token.HashToken(presented)

	rec, err := s.tokens.FindByHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return Tokens{}, ErrRefreshTokenNotFound
	}
	if err != nil {
		return Tokens{}, err
	}
	if rec.Expired(s.now()) {
		if err := s.tokens.DeleteByHash(ctx, hash); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("delete expired refresh token failed", "err", err)
		}
		return Tokens{}, ErrRefreshTokenNotFound
	}

	subject, ok := s.codec.ExtractSubject(presented)
	if !ok || !s.codec.IsRefreshToken(presented) {
		return Tokens{}, ErrInvalidToken
	}
	u, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return Tokens{}, ErrInvalidToken
	}
	if err != nil {
		return Tokens{}, err
	}
	if u.ID != rec.UserID {
		return Tokens{}, ErrInvalidToken
	}

	pair, next, err := s.mint(u)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.tokens.Rotate(ctx, hash, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tokens{}, ErrRefreshTokenNotFound
		}
		return Tokens{}, err
	}
	s.publish(ctx, queue.EventSessionRefreshed, u)
	return pair, nil
}

// UpdatePassword replaces the caller's password after checking current and
// ends every session of the caller.  Access tokens already issued stay
// valid until they expire.
func (s *SessionService) UpdatePassword(ctx context.Context, current, next string) error {
	p, err := s.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, p.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnauthenticated
	}
	if err != nil {
		return err
	}
	if !s.hasher.Matches(current, u.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return err
		}
		revoked, err = s.tokens.DeleteAllForUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("password changed", "user_id", u.ID, "sessions_revoked", revoked)
	s.publish(ctx, queue.EventPasswordChanged, u)
	return nil
}

// Logout deletes the presented refresh token.
func (s *SessionService) Logout(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return ErrRefreshTokenNotFound
	}
	err := s.tokens.DeleteByHash(ctx, token.HashToken(presented))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRefreshTokenNotFound
	}
	return err
}

// RevokeAllSessions deletes every refresh token of the user with email.
// Access tokens already issued stay valid until they expire.
func (s *SessionService) RevokeAllSessions(ctx context.Context, email string) (int64, error) {
	u, err := s.users.FindByEmail(ctx, repository.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	n, err := s.tokens.DeleteAllForUser(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	s.log.Info("sessions revoked", "user_id", u.ID, "count", n)
	s.publish(ctx, queue.EventSessionRevoked, u)
	return n, nil
}

// PruneExpired deletes refresh rows past their expiry.
func (s *SessionService) PruneExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

// LoadIdentity returns the live profile of the user with email.  It is the
// lookup the request authenticator performs on every bearer request.
func (s *SessionService) LoadIdentity(ctx context.Context, email string) (model.UserProfile, error) {
	u, err := s.users.FindByEmail(ctx, repository.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return model.UserProfile{}, ErrUserNotFound
	}
	if err != nil {
		return model.UserProfile{}, err
	}
	return u.Profile(), nil
}

// CurrentIdentity returns the caller bound to ctx by the authenticator.
func (s *SessionService) CurrentIdentity(ctx context.Context) (model.UserProfile, error) {
	p, ok := IdentityFrom(ctx)
	if !ok {
		return model.UserProfile{}, ErrUnauthenticated
	}
	return p, nil
}

// openSession mints a pair for u and stores the refresh token.
func (s *SessionService) openSession(ctx context.Context, u model.User) (Tokens, error) {
	pair, rec, err := s.mint(u)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.tokens.Store(ctx, rec); err != nil {
		return Tokens{}, err
	}
	return pair, nil
}

func (s *SessionService) mint(u model.User) (Tokens, model.RefreshToken, error) {
	p, err := s.codec.IssuePair(u.Email, model.RoleStrings(u.Roles))
	if err != nil {
		return Tokens{}, model.RefreshToken{}, err
	}
	rec := model.RefreshToken{
		ID:        uuid.New(),
		UserID:    u.ID,
		TokenHash: token.HashToken(p.Refresh),
		ExpiresAt: p.RefreshExpires,
	}
	return Tokens{
		AccessToken:      p.Access,
		AccessExpiresAt:  p.AccessExpires,
		RefreshToken:     p.Refresh,
		RefreshExpiresAt: p.RefreshExpires,
	}, rec, nil
}

func (s *SessionService) checkCaptcha(ctx context.Context, captchaToken string) error {
	if s.captcha == nil {
		return nil
	}
	ok, err := s.captcha.Verify(ctx, captchaToken)
	if err != nil {
		return fmt.Errorf("captcha: %w", err)
	}
	if !ok {
		return ErrCaptchaFailed
	}
	return nil
}

func (s *SessionService) publish(ctx context.Context, typ queue.EventType, u model.User) {
	if s.events == nil {
		return
	}
	ev := queue.AuthEvent{
		Type:       typ,
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		Roles:      model.RoleStrings(u.Roles),
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish auth event failed", "type", typ, "err", err)
	}
}
