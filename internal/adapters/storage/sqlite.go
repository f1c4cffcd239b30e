package storage

// sqlite.go — audit trail del reconciliador.
//
// Estrategia:
//   - `cycles`: una fila por ciclo con el resumen de lo que pasó.
//   - `submissions`: una fila por intento de orden (aceptada o rechazada).
//   - Prune automático al arrancar: cycles > 30d, submissions > 30d.
// Los fallos de escritura nunca abortan un ciclo — el audit log es
// best-effort por diseño del loop.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysync/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resumen por ciclo de reconciliación
CREATE TABLE IF NOT EXISTS cycles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    ran_at           DATETIME NOT NULL,
    snapshot_assets  INTEGER  NOT NULL DEFAULT 0,
    intents          INTEGER  NOT NULL DEFAULT 0,
    pending_assets   INTEGER  NOT NULL DEFAULT 0,
    deferred_entries INTEGER  NOT NULL DEFAULT 0,
    orders_placed    INTEGER  NOT NULL DEFAULT 0,
    orders_cancelled INTEGER  NOT NULL DEFAULT 0,
    market_submitted INTEGER  NOT NULL DEFAULT 0,
    errors           INTEGER  NOT NULL DEFAULT 0,
    duration_ms      INTEGER  NOT NULL DEFAULT 0
);

-- Una fila por intento de submission
CREATE TABLE IF NOT EXISTS submissions (
    id         TEXT PRIMARY KEY,
    order_id   TEXT,
    asset_id   TEXT NOT NULL,
    side       TEXT NOT NULL,
    style      TEXT NOT NULL,
    price      REAL NOT NULL,
    size       REAL NOT NULL,
    success    INTEGER NOT NULL DEFAULT 0,
    error      TEXT,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_at      ON cycles(ran_at DESC);
CREATE INDEX IF NOT EXISTS idx_sub_asset      ON submissions(asset_id);
CREATE INDEX IF NOT EXISTS idx_sub_created_at ON submissions(created_at DESC);
`

const retention = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.AuditStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveCycle persiste el resumen de un ciclo.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, c domain.CycleAudit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (ran_at, snapshot_assets, intents, pending_assets,
			deferred_entries, orders_placed, orders_cancelled, market_submitted,
			errors, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RanAt.UTC(), c.SnapshotAssets, c.Intents, c.PendingAssets,
		c.DeferredEntries, c.OrdersPlaced, c.OrdersCancelled, c.MarketSubmitted,
		c.Errors, c.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

// SaveSubmission persiste un intento de orden.
func (s *SQLiteStorage) SaveSubmission(ctx context.Context, sub domain.SubmissionAudit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, order_id, asset_id, side, style, price,
			size, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.OrderID, sub.AssetID, string(sub.Side), string(sub.Style),
		sub.Price, sub.Size, boolToInt(sub.Success), sub.Error, sub.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveSubmission: %w", err)
	}
	return nil
}

// GetRecentCycles devuelve los últimos N ciclos, más reciente primero.
func (s *SQLiteStorage) GetRecentCycles(ctx context.Context, limit int) ([]domain.CycleAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ran_at, snapshot_assets, intents, pending_assets,
			deferred_entries, orders_placed, orders_cancelled, market_submitted,
			errors, duration_ms
		FROM cycles ORDER BY ran_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRecentCycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.CycleAudit
	for rows.Next() {
		var c domain.CycleAudit
		var durMS int64
		if err := rows.Scan(&c.ID, &c.RanAt, &c.SnapshotAssets, &c.Intents,
			&c.PendingAssets, &c.DeferredEntries, &c.OrdersPlaced,
			&c.OrdersCancelled, &c.MarketSubmitted, &c.Errors, &durMS); err != nil {
			return nil, fmt.Errorf("storage.GetRecentCycles: scan: %w", err)
		}
		c.Duration = time.Duration(durMS) * time.Millisecond
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Close cierra la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld borra filas más viejas que la retención configurada.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retention)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE ran_at < ?`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM submissions WHERE created_at < ?`, cutoff)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
