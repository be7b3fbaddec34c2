package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/antonstanevich/majordomo/internal/models"
)

// MemoryStorage is the in-memory Storage used for tests and local runs
// without a database.
type MemoryStorage struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	turns      []*models.ChatTurn
	toolLogs   []*models.ToolLog
	schedules  map[int64]*models.Schedule
	nextTurnID int64
	nextLogID  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[string]*models.User),
		schedules:  make(map[int64]*models.Schedule),
		nextTurnID: 1,
		nextLogID:  1,
	}
}

func (s *MemoryStorage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, ok := s.users[userID]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryStorage) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ChatID == chatID && user.IsActive {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.users[user.ID]; ok {
		existing.DisplayName = user.DisplayName
		existing.IsActive = true
		existing.UpdatedAt = now
		return nil
	}

	clone := *user
	clone.IsActive = true
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.users[user.ID] = &clone
	return nil
}

func (s *MemoryStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

func (s *MemoryStorage) DeactivateUser(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.ChatID == chatID {
			user.IsActive = false
			user.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *MemoryStorage) UpdateUserPreference(ctx context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}

	switch key {
	case "default_llm":
		user.DefaultLLM = value
	case "timezone":
		user.Timezone = value
	default:
		return fmt.Errorf("unknown preference key: %s", key)
	}
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SaveChatTurn(ctx context.Context, turn *models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn.ID = s.nextTurnID
	s.nextTurnID++
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	clone := *turn
	s.turns = append(s.turns, &clone)
	return nil
}

func (s *MemoryStorage) GetChatContext(ctx context.Context, userID string, limit int) ([]*models.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.ChatTurn
	for _, turn := range s.turns {
		if turn.UserID == userID {
			matched = append(matched, turn)
		}
	}

	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]*models.ChatTurn, len(matched))
	for i, turn := range matched {
		clone := *turn
		out[i] = &clone
	}
	return out, nil
}

func (s *MemoryStorage) DeleteChatTurnsBefore(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.turns[:0]
	for _, turn := range s.turns {
		if !turn.CreatedAt.Before(cutoff) {
			kept = append(kept, turn)
		}
	}
	s.turns = kept
	return nil
}

func (s *MemoryStorage) LogToolUsage(ctx context.Context, entry *models.ToolLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextLogID
	s.nextLogID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.InputSummary = Truncate(entry.InputSummary, MaxInputSummaryLen)
	entry.OutputSummary = Truncate(entry.OutputSummary, MaxInputSummaryLen)
	entry.ErrorMessage = Truncate(entry.ErrorMessage, MaxErrorMessageLen)

	clone := *entry
	s.toolLogs = append(s.toolLogs, &clone)
	return nil
}

func (s *MemoryStorage) DeleteToolLogsBefore(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.toolLogs[:0]
	for _, entry := range s.toolLogs {
		if !entry.CreatedAt.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	s.toolLogs = kept
	return nil
}

// ToolLogs returns a snapshot of logged invocations, newest last. Test helper.
func (s *MemoryStorage) ToolLogs() []*models.ToolLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ToolLog, len(s.toolLogs))
	for i, entry := range s.toolLogs {
		clone := *entry
		out[i] = &clone
	}
	return out
}

// AddSchedule registers a schedule entry. Test and bootstrap helper.
func (s *MemoryStorage) AddSchedule(sched *models.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *sched
	s.schedules[sched.ID] = &clone
}

func (s *MemoryStorage) GetActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Schedule
	for _, sched := range s.schedules {
		if sched.IsActive {
			clone := *sched
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemoryStorage) UpdateScheduleLastRun(ctx context.Context, scheduleID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sched, ok := s.schedules[scheduleID]; ok {
		t := at
		sched.LastRunAt = &t
	}
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
