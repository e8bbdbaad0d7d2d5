package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secureshare/portal/internal/domain"
)

// In-memory implementations back the service when no database is configured
// and in tests. Lookups miss with pgx.ErrNoRows like the Postgres versions.

type memoryAccounts struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byEmail map[string]string
}

// NewMemoryAccountRepository returns an in-process AccountRepository.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccounts{byID: make(map[string]*domain.Account), byEmail: make(map[string]string)}
}

func (m *memoryAccounts) Create(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[account.Email]; exists {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	account.ID = uuid.NewString()
	account.CreatedAt = now
	account.UpdatedAt = now
	stored := *account
	m.byID[account.ID] = &stored
	m.byEmail[account.Email] = account.ID
	return nil
}

func (m *memoryAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *account
	return &out, nil
}

func (m *memoryAccounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.RLock()
	id, ok := m.byEmail[email]
	m.mu.RUnlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *memoryAccounts) MarkVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.Verified = true
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[id]; ok {
		delete(m.byEmail, account.Email)
		delete(m.byID, id)
	}
	return nil
}

type memoryVerifications struct {
	mu      sync.Mutex
	byToken map[string]*domain.VerificationToken
	byID    map[string]*domain.VerificationToken
}

// NewMemoryVerificationRepository returns an in-process VerificationRepository.
func NewMemoryVerificationRepository() VerificationRepository {
	return &memoryVerifications{
		byToken: make(map[string]*domain.VerificationToken),
		byID:    make(map[string]*domain.VerificationToken),
	}
}

func (m *memoryVerifications) Create(_ context.Context, token *domain.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byToken[token.Token]; exists {
		return ErrDuplicate
	}
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now().UTC()
	stored := *token
	m.byToken[token.Token] = &stored
	m.byID[token.ID] = &stored
	return nil
}

func (m *memoryVerifications) GetByToken(_ context.Context, tokenStr string) (*domain.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byToken[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *token
	return &out, nil
}

func (m *memoryVerifications) MarkUsed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byID[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if token.UsedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	token.UsedAt = &now
	return true, nil
}

type memoryFiles struct {
	mu    sync.RWMutex
	order []string // newest first
	byID  map[string]*domain.FileRecord
}

// NewMemoryFileRepository returns an in-process FileRepository.
func NewMemoryFileRepository() FileRepository {
	return &memoryFiles{byID: make(map[string]*domain.FileRecord)}
}

func (m *memoryFiles) Create(_ context.Context, file *domain.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[file.ID]; exists {
		return ErrDuplicate
	}
	stored := *file
	m.byID[file.ID] = &stored
	m.order = append([]string{file.ID}, m.order...)
	return nil
}

func (m *memoryFiles) List(_ context.Context) ([]domain.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.FileRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.byID[id])
	}
	return out, nil
}

func (m *memoryFiles) GetByID(_ context.Context, id string) (*domain.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *file
	return &out, nil
}

func (m *memoryFiles) IncrementDownloadCount(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	file.DownloadCount++
	return true, nil
}
