package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-gateway/internal/calls"
	"voice-gateway/pkg/utils"
)

// PostgresStore persists call records in the call_records table.
//
// Per-key serialization relies on a row lock: Update runs SELECT ... FOR UPDATE
// and the full-row write in one transaction, and FindOrCreate uses
// INSERT ... ON CONFLICT DO NOTHING so concurrent creations for one call_id
// collapse to a single row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const callRecordColumns = `call_id, phone_number, direction, status, start_time, end_time, transcript, intent, provider_call_ref`

func (s *PostgresStore) Create(ctx context.Context, record calls.CallRecord) error {
	transcript, err := marshalTranscript(record.Transcript)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO call_records (`+callRecordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (call_id) DO NOTHING`,
		record.CallID, record.PhoneNumber, record.Direction, record.Status,
		record.StartTime.UTC(), nullableTime(record.EndTime), transcript,
		nullableString(string(record.Intent)), nullableString(record.ProviderCallRef),
	)
	if err != nil {
		return fmt.Errorf("store: insert call record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateKey
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, callID string) (calls.CallRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+callRecordColumns+` FROM call_records WHERE call_id = $1`, callID)
	return scanCallRecord(row)
}

func (s *PostgresStore) FindOrCreate(ctx context.Context, callID string, factory Factory) (calls.CallRecord, bool, error) {
	record := factory()
	record.CallID = callID

	err := s.Create(ctx, record)
	switch {
	case err == nil:
		return record, true, nil
	case errors.Is(err, ErrDuplicateKey):
		existing, ferr := s.Find(ctx, callID)
		if ferr != nil {
			return calls.CallRecord{}, false, ferr
		}
		return existing, false, nil
	default:
		return calls.CallRecord{}, false, err
	}
}

func (s *PostgresStore) Update(ctx context.Context, callID string, mutate Mutator) (calls.CallRecord, error) {
	var out calls.CallRecord
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+callRecordColumns+` FROM call_records WHERE call_id = $1 FOR UPDATE`, callID)
		record, err := scanCallRecord(row)
		if err != nil {
			return err
		}

		mutate(&record)
		record.CallID = callID

		transcript, err := marshalTranscript(record.Transcript)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE call_records
			SET phone_number = $2, direction = $3, status = $4, end_time = $5,
			    transcript = $6, intent = $7, provider_call_ref = $8
			WHERE call_id = $1`,
			callID, record.PhoneNumber, record.Direction, record.Status,
			nullableTime(record.EndTime), transcript,
			nullableString(string(record.Intent)), nullableString(record.ProviderCallRef),
		)
		if err != nil {
			return fmt.Errorf("store: update call record: %w", err)
		}
		out = record
		return nil
	})
	if err != nil {
		return calls.CallRecord{}, err
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter, limit, offset int) ([]calls.CallRecord, error) {
	where, args := filterClause(f)
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, offset)
	q := `SELECT ` + callRecordColumns + ` FROM call_records` + where +
		fmt.Sprintf(` ORDER BY start_time DESC, call_id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list call records: %w", err)
	}
	defer rows.Close()

	out := make([]calls.CallRecord, 0)
	for rows.Next() {
		r, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := filterClause(f)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_records`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count call records: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	return s.Count(ctx, Filter{Status: calls.CallStatusInProgress})
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Direction != "" {
		args = append(args, string(f.Direction))
		conds = append(conds, fmt.Sprintf("direction = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallRecord(row rowScanner) (calls.CallRecord, error) {
	var (
		r          calls.CallRecord
		endTime    sql.NullTime
		transcript []byte
		intent     sql.NullString
		ref        sql.NullString
	)
	err := row.Scan(&r.CallID, &r.PhoneNumber, &r.Direction, &r.Status,
		&r.StartTime, &endTime, &transcript, &intent, &ref)
	if errors.Is(err, sql.ErrNoRows) {
		return calls.CallRecord{}, ErrNotFound
	}
	if err != nil {
		return calls.CallRecord{}, fmt.Errorf("store: scan call record: %w", err)
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		r.EndTime = &t
	}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &r.Transcript); err != nil {
			return calls.CallRecord{}, fmt.Errorf("store: decode transcript: %w", err)
		}
	}
	r.Intent = calls.Intent(intent.String)
	r.ProviderCallRef = ref.String
	r.StartTime = r.StartTime.UTC()
	return r, nil
}

func marshalTranscript(t []calls.TranscriptEntry) ([]byte, error) {
	if t == nil {
		t = []calls.TranscriptEntry{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("store: encode transcript: %w", err)
	}
	return b, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
