package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DeliveryJournal remembers which gateway message ids were already stored
// so that redelivered webhooks are acknowledged without a second row.
type DeliveryJournal struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

func OpenDeliveryJournal(path string, retention time.Duration) (*DeliveryJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			instance TEXT NOT NULL,
			message_id TEXT NOT NULL,
			seen_at INTEGER NOT NULL,
			PRIMARY KEY (instance, message_id)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create deliveries table: %w", err)
	}

	return &DeliveryJournal{db: db, retention: retention, now: time.Now}, nil
}

func (j *DeliveryJournal) Seen(ctx context.Context, instance, messageID string) (bool, error) {
	var exists bool
	err := j.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM deliveries WHERE instance = ? AND message_id = ?)",
		instance, messageID).Scan(&exists)
	return exists, err
}

func (j *DeliveryJournal) Remember(ctx context.Context, instance, messageID string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO deliveries (instance, message_id, seen_at) VALUES (?, ?, ?)",
		instance, messageID, j.now().Unix())
	return err
}

// Prune deletes entries older than the retention window.
func (j *DeliveryJournal) Prune(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention).Unix()
	res, err := j.db.ExecContext(ctx, "DELETE FROM deliveries WHERE seen_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunPruner prunes periodically until ctx is done.
func (j *DeliveryJournal) RunPruner(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.Prune(ctx)
			if err != nil {
				zap.L().Warn("journal prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Debug("journal pruned", zap.Int64("entries", n))
			}
		}
	}
}

func (j *DeliveryJournal) Close() error {
	return j.db.Close()
}
