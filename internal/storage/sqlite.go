package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultDeliveredCap = 4096

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	deliveredCap int
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	keep := cfg.DeliveredCap
	if keep <= 0 {
		keep = defaultDeliveredCap
	}
	st := &sqliteStore{db: db, log: log, deliveredCap: keep}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Watches ----

func (s *sqliteStore) ListWatches(ctx context.Context) ([]model.Watch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, query FROM watches ORDER BY source, query`)
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}
	defer rows.Close()

	var watches []model.Watch
	for rows.Next() {
		var w model.Watch
		if err := rows.Scan(&w.Source, &w.Query); err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range watches {
		w := &watches[i]
		if err := s.loadDestinations(ctx, w); err != nil {
			return nil, err
		}
		if err := s.loadDelivered(ctx, w); err != nil {
			return nil, err
		}
	}
	return watches, nil
}

func (s *sqliteStore) loadDestinations(ctx context.Context, w *model.Watch) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, policy, COALESCE(channel_id,''), COALESCE(webhook_url,'')
		 FROM watch_destinations WHERE source = ? AND query = ?`,
		w.Source, w.Query)
	if err != nil {
		return fmt.Errorf("load destinations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d model.Destination
		if err := rows.Scan(&d.Kind, &d.Policy, &d.ChannelID, &d.WebhookURL); err != nil {
			return err
		}
		w.Destinations = append(w.Destinations, d)
	}
	return rows.Err()
}

func (s *sqliteStore) loadDelivered(ctx context.Context, w *model.Watch) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM delivered WHERE source = ? AND query = ?`,
		w.Source, w.Query)
	if err != nil {
		return fmt.Errorf("load delivered: %w", err)
	}
	defer rows.Close()
	w.DeliveredIDs = map[string]struct{}{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		w.DeliveredIDs[key] = struct{}{}
	}
	return rows.Err()
}

// PutWatch upserts a watch and replaces its destination set. Delivered
// keys for the watch are untouched.
func (s *sqliteStore) PutWatch(ctx context.Context, w model.Watch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put watch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO watches(source, query) VALUES(?,?)
		 ON CONFLICT(source, query) DO NOTHING`, w.Source, w.Query); err != nil {
		return fmt.Errorf("put watch: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM watch_destinations WHERE source = ? AND query = ?`,
		w.Source, w.Query); err != nil {
		return fmt.Errorf("put watch destinations: %w", err)
	}
	for _, d := range w.Destinations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO watch_destinations(source, query, kind, policy, channel_id, webhook_url)
			 VALUES(?,?,?,?,?,?)`,
			w.Source, w.Query, d.Kind, d.Policy, d.ChannelID, d.WebhookURL); err != nil {
			return fmt.Errorf("put watch destinations: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendDelivered(ctx context.Context, source model.SourceKind, query, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivered(source, query, key, at) VALUES(?,?,?,?)
		 ON CONFLICT(source, query, key) DO NOTHING`,
		source, query, key, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append delivered: %w", err)
	}
	// Bound growth: drop the oldest keys past the cap.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM delivered WHERE source = ? AND query = ? AND key NOT IN (
		   SELECT key FROM delivered WHERE source = ? AND query = ?
		   ORDER BY at DESC LIMIT ?)`,
		source, query, source, query, s.deliveredCap)
	if err != nil {
		return fmt.Errorf("prune delivered: %w", err)
	}
	return nil
}

// ---- Stream snapshots ----

func (s *sqliteStore) GetSnapshot(ctx context.Context, streamerID string) (model.StreamSnapshot, bool, error) {
	var (
		snap model.StreamSnapshot
		at   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT streamer_id, is_live, title, game_name, ref_channel_id, ref_message_id, updated_at
		 FROM stream_snapshots WHERE streamer_id = ?`, streamerID).
		Scan(&snap.StreamerID, &snap.IsLive, &snap.Title, &snap.GameName,
			&snap.LastRef.ChannelID, &snap.LastRef.MessageID, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StreamSnapshot{}, false, nil
	}
	if err != nil {
		return model.StreamSnapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, at)
	return snap, true, nil
}

func (s *sqliteStore) PutSnapshot(ctx context.Context, snap model.StreamSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stream_snapshots(streamer_id, is_live, title, game_name, ref_channel_id, ref_message_id, updated_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(streamer_id) DO UPDATE SET
		   is_live=excluded.is_live, title=excluded.title, game_name=excluded.game_name,
		   ref_channel_id=excluded.ref_channel_id, ref_message_id=excluded.ref_message_id,
		   updated_at=excluded.updated_at`,
		snap.StreamerID, snap.IsLive, snap.Title, snap.GameName,
		snap.LastRef.ChannelID, snap.LastRef.MessageID,
		snap.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

func (s *sqliteStore) ListStreamers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT streamer_id FROM stream_snapshots ORDER BY streamer_id`)
	if err != nil {
		return nil, fmt.Errorf("list streamers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- Audit records ----

func (s *sqliteStore) InsertAudit(ctx context.Context, rec model.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_messages(
		   message_id, channel_id, guild_id, author_id,
		   content, content_history, attachments, attachments_history,
		   embeds, embeds_history, pinned, was_pinned, created_at, edited_at, deleted)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(message_id) DO NOTHING`,
		rec.MessageID, rec.ChannelID, rec.GuildID, rec.AuthorID,
		rec.Content, mustJSON(rec.ContentHistory),
		mustJSON(rec.Attachments), mustJSON(rec.AttachmentsHistory),
		mustJSON(rec.Embeds), mustJSON(rec.EmbedsHistory),
		rec.Pinned, rec.WasPinned,
		rec.CreatedAt.Format(time.RFC3339Nano), nullTime(rec.EditedAt), rec.Deleted)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetAudit(ctx context.Context, messageID string) (model.AuditRecord, bool, error) {
	var (
		rec                           model.AuditRecord
		contentHist, atts, attsHist   string
		embeds, embedsHist, createdAt string
		editedAt                      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, channel_id, guild_id, author_id,
		        content, content_history, attachments, attachments_history,
		        embeds, embeds_history, pinned, was_pinned, created_at, edited_at, deleted
		 FROM audit_messages WHERE message_id = ?`, messageID).
		Scan(&rec.MessageID, &rec.ChannelID, &rec.GuildID, &rec.AuthorID,
			&rec.Content, &contentHist, &atts, &attsHist,
			&embeds, &embedsHist, &rec.Pinned, &rec.WasPinned, &createdAt, &editedAt, &rec.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AuditRecord{}, false, nil
	}
	if err != nil {
		return model.AuditRecord{}, false, fmt.Errorf("get audit: %w", err)
	}

	if err := json.Unmarshal([]byte(contentHist), &rec.ContentHistory); err != nil {
		return model.AuditRecord{}, false, fmt.Errorf("decode content history: %w", err)
	}
	if err := json.Unmarshal([]byte(atts), &rec.Attachments); err != nil {
		return model.AuditRecord{}, false, fmt.Errorf("decode attachments: %w", err)
	}
	if err := json.Unmarshal([]byte(attsHist), &rec.AttachmentsHistory); err != nil {
		return model.AuditRecord{}, false, fmt.Errorf("decode attachments history: %w", err)
	}
	if err := json.Unmarshal([]byte(embeds), &rec.Embeds); err != nil {
		return model.AuditRecord{}, false, fmt.Errorf("decode embeds: %w", err)
	}
	if err := json.Unmarshal([]byte(embedsHist), &rec.EmbedsHistory); err != nil {
		return model.AuditRecord{}, false, fmt.Errorf("decode embeds history: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if editedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, editedAt.String); perr == nil {
			rec.EditedAt = &t
		}
	}
	return rec, true, nil
}

func (s *sqliteStore) UpdateAudit(ctx context.Context, rec model.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_messages SET
		   content = ?, content_history = ?,
		   attachments = ?, attachments_history = ?,
		   embeds = ?, embeds_history = ?,
		   pinned = ?, was_pinned = ?, edited_at = ?, deleted = ?
		 WHERE message_id = ?`,
		rec.Content, mustJSON(rec.ContentHistory),
		mustJSON(rec.Attachments), mustJSON(rec.AttachmentsHistory),
		mustJSON(rec.Embeds), mustJSON(rec.EmbedsHistory),
		rec.Pinned, rec.WasPinned, nullTime(rec.EditedAt), rec.Deleted,
		rec.MessageID)
	if err != nil {
		return fmt.Errorf("update audit: %w", err)
	}
	return nil
}

// ---- Logging config ----

func (s *sqliteStore) GetLoggingConfig(ctx context.Context, guildID string) (model.LoggingConfig, bool, error) {
	var cfg model.LoggingConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, bitmask, webhook_url FROM guild_logging WHERE guild_id = ?`, guildID).
		Scan(&cfg.GuildID, &cfg.Bitmask, &cfg.WebhookURL)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LoggingConfig{}, false, nil
	}
	if err != nil {
		return model.LoggingConfig{}, false, fmt.Errorf("get logging config: %w", err)
	}
	return cfg, true, nil
}

func (s *sqliteStore) PutLoggingConfig(ctx context.Context, cfg model.LoggingConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_logging(guild_id, bitmask, webhook_url) VALUES(?,?,?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   bitmask=excluded.bitmask, webhook_url=excluded.webhook_url`,
		cfg.GuildID, cfg.Bitmask, cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("put logging config: %w", err)
	}
	return nil
}

func mustJSON(v any) string {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return "[]"
		}
	case [][]string:
		if x == nil {
			return "[]"
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
