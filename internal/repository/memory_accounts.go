package repository

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/bookmyseat/internal/model"
	"github.com/iliyamo/bookmyseat/internal/utils"
)

// MemoryUsers is the in-process counterpart of UserRepo used with
// STORE_DRIVER=memory.  Accounts are lost on restart.
type MemoryUsers struct {
	mu    sync.RWMutex
	next  uint64
	users map[uint64]model.User
}

func NewMemoryUsers() *MemoryUsers { return &MemoryUsers{users: map[uint64]model.User{}} }

// Create mirrors UserRepo.Create including the unique email and roll checks.
func (m *MemoryUsers) Create(_ context.Context, name, email, roll, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	roll = model.NormalizeRoll(roll)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return 0, ErrEmailExists
		}
		if u.RollNumber == roll {
			return 0, ErrRollExists
		}
	}
	m.next++
	now := time.Now().UTC()
	m.users[m.next] = model.User{
		ID: m.next, Name: strings.TrimSpace(name), Email: email, RollNumber: roll,
		PasswordHash: hash, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return m.next, nil
}

func (m *MemoryUsers) find(match func(model.User) bool) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u model.User) bool { return u.Email == email })
}

func (m *MemoryUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id })
}

func (m *MemoryUsers) GetByRoll(_ context.Context, roll string) (model.User, error) {
	roll = model.NormalizeRoll(roll)
	return m.find(func(u model.User) bool { return u.RollNumber == roll })
}

// MemoryTokens keeps refresh token hashes in memory with the same
// semantics as TokenRepo.
type MemoryTokens struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func NewMemoryTokens() *MemoryTokens { return &MemoryTokens{tokens: map[string]model.RefreshToken{}} }

func (m *MemoryTokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp.UTC(), CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryTokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return 0, sql.ErrNoRows
	}
	return t.UserID, nil
}

func (m *MemoryTokens) revoke(tokenHash string) bool {
	t, ok := m.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return false
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	m.tokens[tokenHash] = t
	return true
}

func (m *MemoryTokens) RevokeByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoke(tokenHash)
	return nil
}

func (m *MemoryTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, t := range m.tokens {
		if t.UserID == userID {
			m.revoke(h)
		}
	}
	return nil
}

func (m *MemoryTokens) RotateRefresh(_ context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.revoke(oldHash) {
		return sql.ErrNoRows
	}
	m.tokens[newHash] = model.RefreshToken{UserID: userID, TokenHash: newHash, ExpiresAt: exp.UTC(), CreatedAt: time.Now().UTC()}
	return nil
}

// DeleteExpired drops tokens expired or revoked before cutoff.
func (m *MemoryTokens) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for h, t := range m.tokens {
		if t.ExpiresAt.Before(cutoff) || (t.RevokedAt != nil && t.RevokedAt.Before(cutoff)) {
			delete(m.tokens, h)
			n++
		}
	}
	return n, nil
}
