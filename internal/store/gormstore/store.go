package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tactix/internal/ladder"
	storemodel "tactix/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type ladderStateModel = storemodel.LadderStateModel
type cooldownModel = storemodel.CooldownModel

// GormStore is the durable SQLite store behind ladder states and alert
// cooldowns. Both tables are keyed rows with last-write-wins upserts.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// Bind the dialector to the pure-Go modernc driver ("sqlite"); the
	// default "sqlite3" (mattn/go-sqlite3) needs cgo, and the DSN above is
	// written in modernc's _pragma syntax.
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ladderStateModel{}, &cooldownModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

var (
	_ ladder.Store = (*GormStore)(nil)
)

// GetLadderState loads one state by its SYMBOL|side key.
func (s *GormStore) GetLadderState(ctx context.Context, key string) (ladder.State, bool, error) {
	if s == nil || s.db == nil {
		return ladder.State{}, false, fmt.Errorf("gorm store not initialized")
	}
	symbol, side, err := splitLadderKey(key)
	if err != nil {
		return ladder.State{}, false, err
	}
	var row ladderStateModel
	err = s.db.WithContext(ctx).
		Where("symbol = ? AND side = ?", symbol, side).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ladder.State{}, false, nil
	}
	if err != nil {
		return ladder.State{}, false, err
	}
	st, err := ladder.Decode(string(row.StateJSON))
	if err != nil {
		return ladder.State{}, false, err
	}
	return st, true, nil
}

// PutLadderState upserts the row for the state's key.
func (s *GormStore) PutLadderState(ctx context.Context, st ladder.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	row := ladderStateModel{
		Symbol:        st.Symbol,
		Side:          string(st.Side),
		TradingDate:   st.TradingDate,
		Stage:         st.Stage,
		StateJSON:     datatypes.JSON(ladder.Encode(st)),
		UpdatedAtUnix: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "side"}},
			DoUpdates: clause.AssignmentColumns([]string{"trading_date", "stage", "state_json", "updated_at"}),
		}).
		Create(&row).Error
}

// ListLadderStates returns every persisted state, for the HTTP surface.
func (s *GormStore) ListLadderStates(ctx context.Context) ([]ladder.State, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var rows []ladderStateModel
	if err := s.db.WithContext(ctx).Order("symbol, side").Find(&rows).Error; err != nil {
		return nil, err
	}
	states := make([]ladder.State, 0, len(rows))
	for _, row := range rows {
		st, err := ladder.Decode(string(row.StateJSON))
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

// LastFire reads the cooldown record for (symbol, rule).
func (s *GormStore) LastFire(ctx context.Context, symbol, ruleID string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, fmt.Errorf("gorm store not initialized")
	}
	var row cooldownModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND rule_id = ?", normalizeSymbol(symbol), strings.TrimSpace(ruleID)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(row.LastFireUnix, 0).UTC(), true, nil
}

// RecordFire upserts the cooldown record, never moving it backwards.
func (s *GormStore) RecordFire(ctx context.Context, symbol, ruleID string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	row := cooldownModel{
		Symbol:       normalizeSymbol(symbol),
		RuleID:       strings.TrimSpace(ruleID),
		LastFireUnix: at.Unix(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "rule_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_fire_at": gorm.Expr("MAX(last_fire_at, excluded.last_fire_at)"),
			}),
		}).
		Create(&row).Error
}

func splitLadderKey(key string) (symbol, side string, err error) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("gorm store: malformed ladder key %q", key)
	}
	return strings.ToUpper(parts[0]), parts[1], nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
