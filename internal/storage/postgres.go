package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/antonstanevich/majordomo/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT user_id, chat_id, display_name, role, default_llm, timezone, is_active, created_at, updated_at
		FROM users
		WHERE user_id = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.ChatID,
		&user.DisplayName,
		&user.Role,
		&user.DefaultLLM,
		&user.Timezone,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	query := `
		SELECT user_id, chat_id, display_name, role, default_llm, timezone, is_active, created_at, updated_at
		FROM users
		WHERE chat_id = $1 AND is_active = TRUE`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&user.ID,
		&user.ChatID,
		&user.DisplayName,
		&user.Role,
		&user.DefaultLLM,
		&user.Timezone,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, chat_id, display_name, role, default_llm, timezone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			is_active = TRUE,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.ChatID, user.DisplayName, user.Role, user.DefaultLLM, user.Timezone)
	if err != nil {
		return fmt.Errorf("error upserting user: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT user_id, chat_id, display_name, role, default_llm, timezone, is_active, created_at, updated_at
		FROM users
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %v", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.ChatID,
			&user.DisplayName,
			&user.Role,
			&user.DefaultLLM,
			&user.Timezone,
			&user.IsActive,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %v", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (s *PostgresStorage) DeactivateUser(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("error deactivating user: %v", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateUserPreference(ctx context.Context, userID, key, value string) error {
	// Preference keys map to fixed columns; anything else is rejected here
	// rather than interpolated into SQL.
	var query string
	switch key {
	case "default_llm":
		query = `UPDATE users SET default_llm = $1, updated_at = NOW() WHERE user_id = $2`
	case "timezone":
		query = `UPDATE users SET timezone = $1, updated_at = NOW() WHERE user_id = $2`
	default:
		return fmt.Errorf("unknown preference key: %s", key)
	}

	_, err := s.db.ExecContext(ctx, query, value, userID)
	if err != nil {
		return fmt.Errorf("error updating preference %s: %v", key, err)
	}
	return nil
}

func (s *PostgresStorage) SaveChatTurn(ctx context.Context, turn *models.ChatTurn) error {
	query := `
		INSERT INTO chat_history (user_id, role, content, tool_used, llm_model, token_used)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		turn.UserID, turn.Role, turn.Content, turn.ToolUsed, turn.LLMModel, turn.TokenUsed,
	).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving chat turn: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetChatContext(ctx context.Context, userID string, limit int) ([]*models.ChatTurn, error) {
	query := `
		SELECT id, user_id, role, content, COALESCE(tool_used, ''), COALESCE(llm_model, ''), COALESCE(token_used, 0), created_at
		FROM chat_history
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying chat context: %v", err)
	}
	defer rows.Close()

	var turns []*models.ChatTurn
	for rows.Next() {
		turn := &models.ChatTurn{}
		err := rows.Scan(
			&turn.ID,
			&turn.UserID,
			&turn.Role,
			&turn.Content,
			&turn.ToolUsed,
			&turn.LLMModel,
			&turn.TokenUsed,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat turn: %v", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come back newest-first; callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (s *PostgresStorage) DeleteChatTurnsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("error deleting old chat turns: %v", err)
	}
	return nil
}

func (s *PostgresStorage) LogToolUsage(ctx context.Context, entry *models.ToolLog) error {
	query := `
		INSERT INTO tool_logs (user_id, tool_name, input_summary, output_summary, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		entry.UserID,
		entry.ToolName,
		Truncate(entry.InputSummary, MaxInputSummaryLen),
		Truncate(entry.OutputSummary, MaxInputSummaryLen),
		entry.Status,
		Truncate(entry.ErrorMessage, MaxErrorMessageLen),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error logging tool usage: %v", err)
	}

	return nil
}

func (s *PostgresStorage) DeleteToolLogsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tool_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("error deleting old tool logs: %v", err)
	}
	return nil
}

func (s *PostgresStorage) GetActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	query := `
		SELECT id, user_id, tool_name, cron_expr, args, is_active, last_run_at
		FROM schedules
		WHERE is_active = TRUE
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying schedules: %v", err)
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		sched := &models.Schedule{}
		err := rows.Scan(
			&sched.ID,
			&sched.UserID,
			&sched.ToolName,
			&sched.CronExpr,
			&sched.Args,
			&sched.IsActive,
			&sched.LastRunAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning schedule: %v", err)
		}
		schedules = append(schedules, sched)
	}

	return schedules, rows.Err()
}

func (s *PostgresStorage) UpdateScheduleLastRun(ctx context.Context, scheduleID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = $1 WHERE id = $2`, at, scheduleID)
	if err != nil {
		return fmt.Errorf("error updating schedule last run: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
