package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/octobar/internal/model"
)

// Setting keys.
const (
	KeyPollInterval         = "poll_interval_minutes"
	KeyShowBadge            = "show_badge"
	KeyNotificationsEnabled = "notifications_enabled"
	KeyLaunchAtLogin        = "launch_at_login"
	KeyIconStyle            = "icon_style"
	KeyLastPollAt           = "last_poll_at"
	KeyCacheToken           = "cache_token"
)

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// GetSetting returns the raw value stored under key.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.GetContext(ctx, &v, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{Op: "get setting", Err: fmt.Errorf("%s: %w", key, err)}
	}
	return v, true, nil
}

// PutSetting stores value under key.
func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	return s.withTx(ctx, "put setting", func(tx *sqlx.Tx) error {
		return putSettingTx(ctx, tx, key, value)
	})
}

// LoadSettings reads the settings record. Missing or unparseable values
// fall back to their defaults field by field.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (model.Settings, error) {
	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT key, value FROM settings"); err != nil {
		return model.Settings{}, &StoreError{Op: "load settings", Err: err}
	}
	kv := make(map[string]string, len(rows))
	for _, r := range rows {
		kv[r.Key] = r.Value
	}

	st := model.DefaultSettings()
	if v, ok := kv[KeyPollInterval]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			st.PollIntervalMinutes = model.ClampPollInterval(n)
		}
	}
	readBool(kv, KeyShowBadge, &st.ShowBadge)
	readBool(kv, KeyNotificationsEnabled, &st.NotificationsEnabled)
	readBool(kv, KeyLaunchAtLogin, &st.LaunchAtLogin)
	if v, ok := kv[KeyIconStyle]; ok {
		if style, ok := model.ParseIconStyle(v); ok {
			st.IconStyle = style
		}
	}
	if v, ok := kv[KeyLastPollAt]; ok {
		if t, err := parseTime(v); err == nil {
			st.LastPollAt = &t
		}
	}
	st.CacheToken = kv[KeyCacheToken]

	return st, nil
}

// SaveSettings writes every field of st in one transaction.
func (s *SQLiteStore) SaveSettings(ctx context.Context, st model.Settings) error {
	return s.withTx(ctx, "save settings", func(tx *sqlx.Tx) error {
		pairs := [][2]string{
			{KeyPollInterval, strconv.Itoa(model.ClampPollInterval(st.PollIntervalMinutes))},
			{KeyShowBadge, strconv.FormatBool(st.ShowBadge)},
			{KeyNotificationsEnabled, strconv.FormatBool(st.NotificationsEnabled)},
			{KeyLaunchAtLogin, strconv.FormatBool(st.LaunchAtLogin)},
			{KeyIconStyle, string(st.IconStyle)},
		}
		for _, p := range pairs {
			if err := putSettingTx(ctx, tx, p[0], p[1]); err != nil {
				return err
			}
		}

		if st.LastPollAt != nil {
			if err := putSettingTx(ctx, tx, KeyLastPollAt, formatTime(*st.LastPollAt)); err != nil {
				return err
			}
		} else if err := deleteSettingTx(ctx, tx, KeyLastPollAt); err != nil {
			return err
		}

		if st.CacheToken != "" {
			return putSettingTx(ctx, tx, KeyCacheToken, st.CacheToken)
		}
		return deleteSettingTx(ctx, tx, KeyCacheToken)
	})
}

func putSettingTx(ctx context.Context, tx *sqlx.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

func deleteSettingTx(ctx context.Context, tx *sqlx.Tx, key string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

func readBool(kv map[string]string, key string, dst *bool) {
	v, ok := kv[key]
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
