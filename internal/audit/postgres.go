package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"scolaris.org/internal/ids"
)

// PGStore implements Store using PostgreSQL. The audit_log table has no
// update or delete paths.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Action == "" || entry.Outcome == "" {
		return ErrInvalidEntry
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	detail, _ := json.Marshal(entry.Detail)
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, actor_id, active_role, action, target_type, target_id, outcome, detail, occurred_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.ActorID, entry.ActiveRole, entry.Action,
		entry.TargetType, entry.TargetID, entry.Outcome, detail, entry.OccurredAt,
	)
	return err
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(clause, "?", placeholder(len(args)), 1))
	}
	if f.ActorID != "" {
		add("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if !f.From.IsZero() {
		add("occurred_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= ?", f.To)
	}

	query := `select id, actor_id, active_role, action, target_type, target_id, outcome, detail, occurred_at from audit_log`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, limit)
	query += " order by occurred_at asc limit " + placeholder(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActiveRole, &e.Action,
			&e.TargetType, &e.TargetID, &e.Outcome, &detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(detail, &e.Detail)
		out = append(out, e)
	}
	return out, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
