// Package testutil provides in-memory stand-ins for the credential store and
// other collaborators of the session core.
package testutil

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/krisefikser/internal/model"
	"github.com/iliyamo/krisefikser/internal/repository"
)

type txKey struct{}

// MemStore is a thread-safe credential store.  It satisfies the user, role,
// refresh token and transaction interfaces of the session service, and
// mirrors the sentinel errors of the MySQL repositories.
//
// Transactions are serialized on txMu and roll back by restoring a
// snapshot.  Writes outside a transaction also take txMu, so a rollback
// never discards them.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users  map[string]model.User
	roles  map[model.RoleName]model.Role
	tokens map[string]model.RefreshToken
	fail   map[string]error
}

// NewMemStore returns a store seeded with every role.
func NewMemStore() *MemStore {
	s := &MemStore{
		users:  map[string]model.User{},
		roles:  map[model.RoleName]model.Role{},
		tokens: map[string]model.RefreshToken{},
		fail:   map[string]error{},
	}
	for i, name := range model.AllRoles {
		s.roles[name] = model.Role{ID: uint8(i + 1), Name: name}
	}
	return s
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// DropRole removes a seeded role, as if the seed never ran.
func (s *MemStore) DropRole(name model.RoleName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, name)
}

// DeleteUser removes a user and, like the ON DELETE CASCADE key, its tokens.
func (s *MemStore) DeleteUser(email string) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return
	}
	delete(s.users, email)
	for h, t := range s.tokens {
		if t.UserID == u.ID {
			delete(s.tokens, h)
		}
	}
}

// SetRoles replaces the role set of an existing user.
func (s *MemStore) SetRoles(email string, roles ...model.RoleName) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.Roles = append([]model.RoleName(nil), roles...)
		s.users[email] = u
	}
}

// TokenCount reports how many refresh rows exist.
func (s *MemStore) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// TokensFor returns the refresh rows owned by userID.
func (s *MemStore) TokensFor(userID uuid.UUID) []model.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RefreshToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// UserCount reports how many users exist.
func (s *MemStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// outsideTx holds txMu for a write made outside any transaction.
func (s *MemStore) outsideTx(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

func (s *MemStore) failure(method string) error {
	return s.fail[method]
}

// RunInTx serializes transactions and restores the previous state when fn
// fails.  Nested calls join the outer transaction.
func (s *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users, tokens := maps.Clone(s.users), maps.Clone(s.tokens)
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.users, s.tokens = users, tokens
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindByEmail"); err != nil {
		return model.User{}, err
	}
	u, ok := s.users[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	u.Roles = append([]model.RoleName(nil), u.Roles...)
	return u, nil
}

func (s *MemStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ExistsByEmail"); err != nil {
		return false, err
	}
	_, ok := s.users[email]
	return ok, nil
}

func (s *MemStore) Create(ctx context.Context, u model.User) error {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Create"); err != nil {
		return err
	}
	if _, ok := s.users[u.Email]; ok {
		return repository.ErrEmailExists
	}
	for _, r := range u.Roles {
		if _, ok := s.roles[r]; !ok {
			return repository.ErrRoleNotFound
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Roles = append([]model.RoleName(nil), u.Roles...)
	s.users[u.Email] = u
	return nil
}

func (s *MemStore) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdatePassword"); err != nil {
		return err
	}
	for email, u := range s.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			u.UpdatedAt = time.Now().UTC()
			s.users[email] = u
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *MemStore) FindByName(_ context.Context, name model.RoleName) (model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return model.Role{}, repository.ErrRoleNotFound
	}
	return r, nil
}

func (s *MemStore) Store(ctx context.Context, t model.RefreshToken) error {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Store"); err != nil {
		return err
	}
	s.tokens[t.TokenHash] = t
	return nil
}

func (s *MemStore) FindByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (s *MemStore) DeleteByHash(ctx context.Context, tokenHash string) error {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tokenHash]; !ok {
		return repository.ErrNotFound
	}
	delete(s.tokens, tokenHash)
	return nil
}

// Rotate swaps oldHash for next under one lock.
func (s *MemStore) Rotate(ctx context.Context, oldHash string, next model.RefreshToken) error {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[oldHash]; !ok {
		return repository.ErrNotFound
	}
	if err := s.failure("Rotate"); err != nil {
		return err
	}
	delete(s.tokens, oldHash)
	s.tokens[next.TokenHash] = next
	return nil
}

func (s *MemStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}

func (s *MemStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer s.outsideTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}
