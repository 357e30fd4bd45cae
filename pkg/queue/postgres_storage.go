package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/mailqueue/pkg/pg"
)

// DB is the part of *pgxpool.Pool the Postgres storage uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStorage implements Storage on the queued_emails table created by
// the migrations package. Claims use FOR UPDATE SKIP LOCKED so several
// dispatcher processes can share one queue.
type PostgresStorage struct {
	db DB
}

// NewPostgresStorage creates a storage over db.
func NewPostgresStorage(db DB) (*PostgresStorage, error) {
	if db == nil {
		return nil, ErrStorageNil
	}
	return &PostgresStorage{db: db}, nil
}

const emailColumns = `id, status, type, priority, to_addrs, cc_addrs, bcc_addrs,
	subject, html_body, text_body, template_id, template_data, attachments, metadata,
	retry_count, max_retries, last_error, scheduled_for, sent_at, provider_message_id,
	approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	claimed_by, claimed_until, created_at, updated_at`

const orderBy = `ORDER BY priority DESC, scheduled_for ASC NULLS FIRST, created_at ASC, id ASC`

func (s *PostgresStorage) Create(ctx context.Context, e *QueuedEmail) error {
	if e == nil {
		return fmt.Errorf("%w: email cannot be nil", ErrValidation)
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO queued_emails (`+emailColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		emailArgs(e)...)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, e.ID)
	}
	return err
}

func (s *PostgresStorage) Get(ctx context.Context, id uuid.UUID) (*QueuedEmail, error) {
	e, err := scanEmail(s.db.QueryRow(ctx, `SELECT `+emailColumns+` FROM queued_emails WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

func (s *PostgresStorage) List(ctx context.Context, f Filter) ([]*QueuedEmail, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + emailColumns + ` FROM queued_emails` + where + ` ` + orderBy
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*QueuedEmail{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildWhere(f)
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM queued_emails`+where, args...).Scan(&n)
	return n, err
}

func (s *PostgresStorage) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*QueuedEmail, error) {
	var out *QueuedEmail
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := lockEmail(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		current.ID = id
		if err := saveEmail(ctx, tx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

func (s *PostgresStorage) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM queued_emails WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStorage) Claim(ctx context.Context, workerID string, now time.Time, ttl time.Duration) (*QueuedEmail, error) {
	e, err := scanEmail(s.db.QueryRow(ctx,
		`UPDATE queued_emails SET claimed_by = $1, claimed_until = $2
		WHERE id = (
			SELECT id FROM queued_emails
			WHERE status = 'pending'
				AND (scheduled_for IS NULL OR scheduled_for <= $3)
				AND (claimed_until IS NULL OR claimed_until <= $3)
			`+orderBy+`
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+emailColumns,
		workerID, now.Add(ttl), now))
	if pg.IsNotFoundError(err) {
		return nil, ErrNoEmailToClaim
	}
	return e, err
}

func (s *PostgresStorage) ClaimByID(ctx context.Context, id uuid.UUID, workerID string, now time.Time, ttl time.Duration) (*QueuedEmail, error) {
	var out *QueuedEmail
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		e, err := lockEmail(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := claimable(e, now); err != nil {
			return err
		}
		claim(e, workerID, now, ttl)
		if _, err := tx.Exec(ctx,
			`UPDATE queued_emails SET claimed_by = $2, claimed_until = $3 WHERE id = $1`,
			id, e.ClaimedBy, e.ClaimedUntil); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

func (s *PostgresStorage) Release(ctx context.Context, id uuid.UUID, workerID string) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`WITH released AS (
			UPDATE queued_emails SET claimed_by = '', claimed_until = NULL
			WHERE id = $1 AND claimed_by = $2
		)
		SELECT EXISTS (SELECT 1 FROM queued_emails WHERE id = $1)`,
		id, workerID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStorage) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE queued_emails SET claimed_by = '', claimed_until = NULL
		WHERE claimed_by <> '' AND (claimed_until IS NULL OR claimed_until <= $1)`,
		now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) DeleteOlderThan(ctx context.Context, status Status, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM queued_emails WHERE status = $1 AND updated_at < $2`,
		status, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) Stats(ctx context.Context, w StatsWindow) (Stats, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status,
			count(*),
			count(*) FILTER (WHERE created_at >= $1),
			count(*) FILTER (WHERE created_at >= $2),
			count(*) FILTER (WHERE created_at >= $3),
			coalesce(sum(extract(epoch FROM sent_at - created_at)) FILTER (WHERE sent_at IS NOT NULL), 0)::float8,
			count(*) FILTER (WHERE sent_at IS NOT NULL)
		FROM queued_emails
		GROUP BY status`,
		w.Day, w.Week, w.Month)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := Stats{ByStatus: make(map[Status]int)}
	var processedSeconds float64
	var sentTimed int
	for rows.Next() {
		var (
			status                      Status
			total, day, week, month, nt int
			secs                        float64
		)
		if err := rows.Scan(&status, &total, &day, &week, &month, &secs, &nt); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = total
		stats.Total += total
		stats.Today += day
		stats.ThisWeek += week
		stats.ThisMonth += month
		if status == StatusSent {
			processedSeconds += secs
			sentTimed += nt
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if sentTimed > 0 {
		stats.AvgProcessingTime = time.Duration(processedSeconds / float64(sentTimed) * float64(time.Second))
	}
	stats.SuccessRate = successRate(stats.ByStatus[StatusSent], stats.ByStatus[StatusFailed])
	return stats, nil
}

func (s *PostgresStorage) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockEmail(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*QueuedEmail, error) {
	e, err := scanEmail(tx.QueryRow(ctx,
		`SELECT `+emailColumns+` FROM queued_emails WHERE id = $1 FOR UPDATE`, id))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

func saveEmail(ctx context.Context, tx pgx.Tx, e *QueuedEmail) error {
	_, err := tx.Exec(ctx,
		`UPDATE queued_emails SET
			status = $2, type = $3, priority = $4, to_addrs = $5, cc_addrs = $6, bcc_addrs = $7,
			subject = $8, html_body = $9, text_body = $10, template_id = $11, template_data = $12,
			attachments = $13, metadata = $14, retry_count = $15, max_retries = $16, last_error = $17,
			scheduled_for = $18, sent_at = $19, provider_message_id = $20, approved_by = $21,
			approved_at = $22, rejected_by = $23, rejected_at = $24, rejection_reason = $25,
			claimed_by = $26, claimed_until = $27, created_at = $28, updated_at = $29
		WHERE id = $1`,
		emailArgs(e)...)
	return err
}

// emailArgs lists e's values in emailColumns order.
func emailArgs(e *QueuedEmail) []any {
	return []any{
		e.ID, string(e.Status), string(e.Type), int16(e.Priority),
		nonNil(e.To), nonNil(e.CC), nonNil(e.BCC),
		e.Subject, e.HTMLBody, e.TextBody, e.TemplateID,
		e.TemplateData, e.Attachments, e.Metadata,
		e.RetryCount, e.MaxRetries, e.LastError,
		e.ScheduledFor, e.SentAt, e.ProviderMessageID,
		e.ApprovedBy, e.ApprovedAt, e.RejectedBy, e.RejectedAt, e.RejectionReason,
		e.ClaimedBy, e.ClaimedUntil, e.CreatedAt, e.UpdatedAt,
	}
}

func scanEmail(row pgx.Row) (*QueuedEmail, error) {
	var (
		e                QueuedEmail
		status, typ      string
		priority         int16
		to, cc, bcc      []string
		scheduled, sent  *time.Time
		approved, reject *time.Time
		claimedUntil     *time.Time
	)
	err := row.Scan(
		&e.ID, &status, &typ, &priority, &to, &cc, &bcc,
		&e.Subject, &e.HTMLBody, &e.TextBody, &e.TemplateID,
		&e.TemplateData, &e.Attachments, &e.Metadata,
		&e.RetryCount, &e.MaxRetries, &e.LastError,
		&scheduled, &sent, &e.ProviderMessageID,
		&e.ApprovedBy, &approved, &e.RejectedBy, &reject, &e.RejectionReason,
		&e.ClaimedBy, &claimedUntil, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status, e.Type, e.Priority = Status(status), MessageType(typ), Priority(priority)
	e.To, e.CC, e.BCC = nilIfEmpty(to), nilIfEmpty(cc), nilIfEmpty(bcc)
	e.ScheduledFor, e.SentAt = scheduled, sent
	e.ApprovedAt, e.RejectedAt, e.ClaimedUntil = approved, reject, claimedUntil
	return &e, nil
}

// buildWhere renders f as a WHERE clause with positional arguments.
func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if f.Type != "" {
		conds = append(conds, "type = "+arg(string(f.Type)))
	}
	if f.Recipient != "" {
		p := arg(normalizeAddress(f.Recipient))
		conds = append(conds, "("+p+" = ANY(to_addrs) OR "+p+" = ANY(cc_addrs) OR "+p+" = ANY(bcc_addrs))")
	}
	if !f.CreatedAfter.IsZero() {
		conds = append(conds, "created_at >= "+arg(f.CreatedAfter))
	}
	if !f.CreatedBefore.IsZero() {
		conds = append(conds, "created_at < "+arg(f.CreatedBefore))
	}
	if f.Search != "" {
		conds = append(conds, "subject ILIKE "+arg("%"+escapeLike(f.Search)+"%"))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*PostgresStorage)(nil)
)
