package store

import (
	"context"
	"strings"
	"sync"

	"citycal/models"
)

// MemoryEventStore keeps documents in process memory. Values are copied on the
// way in and out so callers never share maps with the store.
type MemoryEventStore struct {
	mu   sync.RWMutex
	docs map[string]*models.CalendarDocument
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{docs: make(map[string]*models.CalendarDocument)}
}

func (s *MemoryEventStore) Get(_ context.Context, userID string) (*models.CalendarDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[userID].Clone(), nil
}

func (s *MemoryEventStore) Save(_ context.Context, userID string, events map[string]models.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = &models.CalendarDocument{UserID: userID, Events: models.CloneEvents(events)}
	return nil
}

// MemoryUserStore is the in-process UserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.users {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
		if u.GitHubID != 0 && existing.GitHubID == u.GitHubID {
			return ErrDuplicate
		}
	}
	s.users[u.UserID] = *u
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, userID string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.UserID == userID })
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return email != "" && u.Email == email })
}

func (s *MemoryUserStore) FindByGitHubID(_ context.Context, githubID int64) (*models.User, error) {
	return s.find(func(u models.User) bool { return githubID != 0 && u.GitHubID == githubID })
}

func (s *MemoryUserStore) FindByRefreshToken(_ context.Context, hashedToken string) (*models.User, error) {
	return s.find(func(u models.User) bool { return hashedToken != "" && u.RefreshToken == hashedToken })
}

func (s *MemoryUserStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; !ok {
		return ErrNotFound
	}
	s.users[u.UserID] = *u
	return nil
}

func (s *MemoryUserStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}
