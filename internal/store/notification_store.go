package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/octobar/internal/model"
)

const notificationColumns = `
	id, container_name, container_avatar_url,
	subject_title, subject_type, subject_url,
	reason, unread, updated_at, last_read_at`

// notificationRow is the on-disk shape of a notification. Times are unix
// milliseconds.
type notificationRow struct {
	ID                 string         `db:"id"`
	ContainerName      string         `db:"container_name"`
	ContainerAvatarURL sql.NullString `db:"container_avatar_url"`
	SubjectTitle       string         `db:"subject_title"`
	SubjectType        string         `db:"subject_type"`
	SubjectURL         sql.NullString `db:"subject_url"`
	Reason             string         `db:"reason"`
	Unread             int            `db:"unread"`
	UpdatedAt          int64          `db:"updated_at"`
	LastReadAt         sql.NullInt64  `db:"last_read_at"`
}

func (r notificationRow) toModel() model.NotificationRecord {
	n := model.NotificationRecord{
		ID:            r.ID,
		ContainerName: r.ContainerName,
		SubjectTitle:  r.SubjectTitle,
		SubjectType:   model.ParseSubjectType(r.SubjectType),
		Reason:        model.ParseReason(r.Reason),
		Unread:        r.Unread != 0,
		UpdatedAt:     time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.ContainerAvatarURL.Valid {
		v := r.ContainerAvatarURL.String
		n.ContainerAvatarURL = &v
	}
	if r.SubjectURL.Valid {
		v := r.SubjectURL.String
		n.SubjectURL = &v
	}
	if r.LastReadAt.Valid {
		t := time.UnixMilli(r.LastReadAt.Int64).UTC()
		n.LastReadAt = &t
	}
	return n
}

func rowsToModels(rows []notificationRow) []model.NotificationRecord {
	out := make([]model.NotificationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// Upsert inserts or replaces a batch of notifications.
func (s *SQLiteStore) Upsert(ctx context.Context, records []model.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.withTx(ctx, "upsert", func(tx *sqlx.Tx) error {
		return upsertTx(ctx, tx, records)
	})
}

func upsertTx(ctx context.Context, tx *sqlx.Tx, records []model.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
		INSERT INTO notifications (` + notificationColumns + `
		) VALUES (
			?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?
		)
		ON CONFLICT(id) DO UPDATE SET
			container_name       = excluded.container_name,
			container_avatar_url = excluded.container_avatar_url,
			subject_title        = excluded.subject_title,
			subject_type         = excluded.subject_type,
			subject_url          = excluded.subject_url,
			reason               = excluded.reason,
			unread               = excluded.unread,
			updated_at           = excluded.updated_at,
			last_read_at         = excluded.last_read_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range records {
		_, err = stmt.ExecContext(ctx,
			n.ID, n.ContainerName, nullString(n.ContainerAvatarURL),
			n.SubjectTitle, string(n.SubjectType), nullString(n.SubjectURL),
			string(n.Reason), boolToInt(n.Unread), n.UpdatedAt.UnixMilli(), nullMillis(n.LastReadAt),
		)
		if err != nil {
			return fmt.Errorf("upserting notification %q: %w", n.ID, err)
		}
	}

	return nil
}

// FetchAll returns every stored notification, newest first.
func (s *SQLiteStore) FetchAll(ctx context.Context) ([]model.NotificationRecord, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT"+notificationColumns+" FROM notifications ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, &StoreError{Op: "fetch all", Err: err}
	}
	return rowsToModels(rows), nil
}

// FetchByCategory returns notifications whose reason belongs to c, newest
// first.
func (s *SQLiteStore) FetchByCategory(ctx context.Context, c model.Category) ([]model.NotificationRecord, error) {
	reasons := model.ReasonsFor(c)
	if reasons == nil {
		return s.FetchAll(ctx)
	}

	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}
	query, args, err := sqlx.In(
		"SELECT"+notificationColumns+" FROM notifications WHERE reason IN (?) ORDER BY updated_at DESC, id DESC",
		names,
	)
	if err != nil {
		return nil, &StoreError{Op: "fetch by category", Err: err}
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, &StoreError{Op: "fetch by category", Err: err}
	}
	return rowsToModels(rows), nil
}

// GetByID returns a single notification.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.NotificationRecord, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row,
		"SELECT"+notificationColumns+" FROM notifications WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StoreError{Op: "get", Err: fmt.Errorf("notification %q: %w", id, ErrNotFound)}
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	n := row.toModel()
	return &n, nil
}

// CountUnread returns the number of unread notifications.
func (s *SQLiteStore) CountUnread(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE unread = 1"); err != nil {
		return 0, &StoreError{Op: "count unread", Err: err}
	}
	return n, nil
}

// MarkRead clears the unread flag of one notification. Marking an unknown
// id is a no-op.
func (s *SQLiteStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET unread = 0, last_read_at = ? WHERE id = ?",
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return &StoreError{Op: "mark read", Err: fmt.Errorf("notification %q: %w", id, err)}
	}
	return nil
}

// MarkAllRead clears the unread flag of every notification.
func (s *SQLiteStore) MarkAllRead(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET unread = 0, last_read_at = ? WHERE unread = 1",
		time.Now().UnixMilli(),
	)
	if err != nil {
		return &StoreError{Op: "mark all read", Err: err}
	}
	return nil
}

// ExistingIDs returns the set of stored ids.
func (s *SQLiteStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT id FROM notifications"); err != nil {
		return nil, &StoreError{Op: "existing ids", Err: err}
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// DeleteOlderThan removes read notifications last updated before cutoff.
// Unread rows are kept so a thread still in the feed is not re-announced.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE unread = 0 AND updated_at < ?",
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, &StoreError{Op: "delete older than", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StoreError{Op: "delete older than", Err: err}
	}
	return n, nil
}

// ClearAll removes every notification and setting.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	return s.withTx(ctx, "clear all", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
			return fmt.Errorf("deleting notifications: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings"); err != nil {
			return fmt.Errorf("deleting settings: %w", err)
		}
		return nil
	})
}

// CommitPass upserts the fetched records and records the poll mark in a
// single transaction.
func (s *SQLiteStore) CommitPass(ctx context.Context, records []model.NotificationRecord, mark PollMark) error {
	return s.withTx(ctx, "commit pass", func(tx *sqlx.Tx) error {
		if err := upsertTx(ctx, tx, records); err != nil {
			return err
		}
		return writePollMark(ctx, tx, mark)
	})
}

// RecordPoll stores the poll mark on its own, for passes that fetched
// nothing new.
func (s *SQLiteStore) RecordPoll(ctx context.Context, mark PollMark) error {
	return s.withTx(ctx, "record poll", func(tx *sqlx.Tx) error {
		return writePollMark(ctx, tx, mark)
	})
}

func writePollMark(ctx context.Context, tx *sqlx.Tx, mark PollMark) error {
	if err := putSettingTx(ctx, tx, KeyLastPollAt, formatTime(mark.PolledAt)); err != nil {
		return err
	}
	if mark.CacheToken == "" {
		return deleteSettingTx(ctx, tx, KeyCacheToken)
	}
	return putSettingTx(ctx, tx, KeyCacheToken, mark.CacheToken)
}
