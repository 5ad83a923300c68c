package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/xaenox/mailsift/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStorage connects and brings the schema up to date.
func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := Open(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return &PostgresStorage{db: db, logger: logger}, nil
}

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, config DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetTableName("schema_migrations")
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStorage) SaveOutcome(ctx context.Context, verdict models.Verdict, results []models.ExtractionResult) error {
	evidence, err := json.Marshal(verdict.Evidence)
	if err != nil {
		return fmt.Errorf("error encoding evidence: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verdicts (message_id, category, confidence, provider, fallback_used, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO UPDATE SET
			category = EXCLUDED.category,
			confidence = EXCLUDED.confidence,
			provider = EXCLUDED.provider,
			fallback_used = EXCLUDED.fallback_used,
			evidence = EXCLUDED.evidence,
			created_at = EXCLUDED.created_at`,
		verdict.MessageID,
		verdict.Category,
		verdict.Confidence,
		verdict.Provider,
		verdict.FallbackUsed,
		evidence,
		verdict.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving verdict: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM extraction_results WHERE message_id = $1`, verdict.MessageID); err != nil {
		return fmt.Errorf("error clearing extraction results: %w", err)
	}

	for _, res := range results {
		var record any
		if res.Record != nil {
			data, err := json.Marshal(res.Record)
			if err != nil {
				return fmt.Errorf("error encoding record: %w", err)
			}
			record = data
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO extraction_results
				(id, message_id, kind, source, filename, provider, fallback_used, valid,
				 missing_fields, validation_errors, error, record, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			res.ID,
			verdict.MessageID,
			res.Kind,
			res.Source,
			res.Filename,
			res.Provider,
			res.FallbackUsed,
			res.Valid,
			pq.Array(nonNil(res.MissingFields)),
			pq.Array(nonNil(res.ValidationErrors)),
			res.Error,
			record,
			res.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error saving extraction result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing outcome: %w", err)
	}
	s.logger.Debug("Saved outcome",
		zap.String("message_id", verdict.MessageID),
		zap.Int("extractions", len(results)))
	return nil
}

func (s *PostgresStorage) GetVerdict(ctx context.Context, messageID string) (*models.Verdict, error) {
	var (
		v        models.Verdict
		evidence []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, category, confidence, provider, fallback_used, evidence, created_at
		FROM verdicts
		WHERE message_id = $1`, messageID,
	).Scan(&v.MessageID, &v.Category, &v.Confidence, &v.Provider, &v.FallbackUsed, &evidence, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying verdict: %w", err)
	}
	if err := json.Unmarshal(evidence, &v.Evidence); err != nil {
		return nil, fmt.Errorf("error decoding evidence: %w", err)
	}
	return &v, nil
}

func (s *PostgresStorage) ListExtractions(ctx context.Context, messageID string) ([]models.ExtractionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, kind, source, filename, provider, fallback_used, valid,
		       missing_fields, validation_errors, error, record, created_at
		FROM extraction_results
		WHERE message_id = $1
		ORDER BY created_at`, messageID)
	if err != nil {
		return nil, fmt.Errorf("error querying extraction results: %w", err)
	}
	defer rows.Close()

	var results []models.ExtractionResult
	for rows.Next() {
		var (
			res    models.ExtractionResult
			record []byte
		)
		err := rows.Scan(
			&res.ID,
			&res.MessageID,
			&res.Kind,
			&res.Source,
			&res.Filename,
			&res.Provider,
			&res.FallbackUsed,
			&res.Valid,
			pq.Array(&res.MissingFields),
			pq.Array(&res.ValidationErrors),
			&res.Error,
			&record,
			&res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning extraction result: %w", err)
		}
		if res.Record, err = decodeRecord(res.Kind, record); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
