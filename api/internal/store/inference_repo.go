package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Record: метаданные одного обращения к completion API. Тексты промпта и
// ответа не сохраняются, только их размеры.
type Record struct {
	RequestID   string
	Endpoint    string // "infer" | "summarize_pdf" | "telegram"
	Engine      string
	Model       string
	Status      string // "ok" | "client_error" | "provider_error" | "config_error"
	ImageCount  int
	ImageBytes  int
	PromptChars int
	OutputChars int
	Duration    time.Duration
}

type InferenceRepo struct{ DB *sql.DB }

func NewInferenceRepo(db *sql.DB) *InferenceRepo { return &InferenceRepo{DB: db} }

var schema = []string{`
create table if not exists inference_log (
  id           bigserial primary key,
  created_at   timestamptz not null default now(),
  request_id   text not null default '',
  endpoint     text not null,
  engine       text not null default '',
  model        text not null default '',
  status       text not null,
  image_count  integer not null default 0,
  image_bytes  bigint not null default 0,
  prompt_chars integer not null default 0,
  output_chars integer not null default 0,
  duration_ms  bigint not null default 0
)`,
	`create index if not exists inference_log_created_at_idx on inference_log (created_at)`,
}

// EnsureSchema создаёт таблицу аудита, если её нет.
func (r *InferenceRepo) EnsureSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *InferenceRepo) Insert(ctx context.Context, rec Record) error {
	const q = `
insert into inference_log (
  request_id, endpoint, engine, model, status,
  image_count, image_bytes, prompt_chars, output_chars, duration_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.DB.ExecContext(ctx, q,
		rec.RequestID, rec.Endpoint, rec.Engine, rec.Model, rec.Status,
		rec.ImageCount, rec.ImageBytes, rec.PromptChars, rec.OutputChars, rec.Duration.Milliseconds(),
	)
	return err
}

// CountSince: сколько вызовов со статусом status было после since
// (пустой status: все).
func (r *InferenceRepo) CountSince(ctx context.Context, since time.Time, status string) (int64, error) {
	const q = `select count(*) from inference_log where created_at >= $1 and ($2::text = '' or status = $2::text)`
	var n int64
	if err := r.DB.QueryRowContext(ctx, q, since, status).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *InferenceRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from inference_log where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
