package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
)

// Config configures storage.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default

	// DeliveredCap bounds the delivered-keys list per watch.
	// The oldest keys are pruned past the cap. 0 means the default (4096).
	DeliveredCap int
}

// Store is the durable-store collaborator used by the pipeline.
type Store interface {
	// Watches. The poll cycle only reads them and appends delivered dedup
	// keys; PutWatch is for the configuration surface that owns them.
	ListWatches(ctx context.Context) ([]model.Watch, error)
	PutWatch(ctx context.Context, w model.Watch) error
	AppendDelivered(ctx context.Context, source model.SourceKind, query, key string) error

	// Stream snapshots, one row per streamer.
	GetSnapshot(ctx context.Context, streamerID string) (model.StreamSnapshot, bool, error)
	PutSnapshot(ctx context.Context, snap model.StreamSnapshot) error
	ListStreamers(ctx context.Context) ([]string, error)

	// Audit records, one row per message id.
	InsertAudit(ctx context.Context, rec model.AuditRecord) error
	GetAudit(ctx context.Context, messageID string) (model.AuditRecord, bool, error)
	UpdateAudit(ctx context.Context, rec model.AuditRecord) error

	// Per-guild logging config; a missing row is (zero, false, nil).
	GetLoggingConfig(ctx context.Context, guildID string) (model.LoggingConfig, bool, error)
	PutLoggingConfig(ctx context.Context, cfg model.LoggingConfig) error

	Close() error
}

// Open initializes the store at cfg.Path.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
