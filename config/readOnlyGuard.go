package config

import (
	"context"
	"errors"
	"strings"

	"github.com/hunttickets/backoffice_backend/appctx"
	"gorm.io/gorm"
)

// ErrReadOnlyTable is returned when a write reaches a table owned by the sales platform.
var ErrReadOnlyTable = errors.New("table is read-only for the back-office")

// ReadOnlyGuardPlugin rejects create/update/delete statements against the given
// tables. Reads are untouched.
//
// NOTE:
// - This does NOT apply to Raw/Exec SQL.
// - Local seeding bypasses it explicitly via appctx.ContextKeyAllowSourceWrites.
type ReadOnlyGuardPlugin struct {
	tables map[string]bool
}

func NewReadOnlyGuardPlugin(tables ...string) *ReadOnlyGuardPlugin {
	p := &ReadOnlyGuardPlugin{tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		p.tables[strings.ToLower(t)] = true
	}
	return p
}

func (p *ReadOnlyGuardPlugin) Name() string { return "read_only_guard" }

func (p *ReadOnlyGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("read_only_guard:create", p.guard); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("read_only_guard:update", p.guard); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("read_only_guard:delete", p.guard); err != nil {
		return err
	}
	return nil
}

func (p *ReadOnlyGuardPlugin) guard(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if !p.tables[strings.ToLower(db.Statement.Table)] {
		return
	}
	if allowSourceWrites(db.Statement.Context) {
		return
	}
	_ = db.AddError(ErrReadOnlyTable)
}

func allowSourceWrites(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := appctx.GetBool(ctx, appctx.ContextKeyAllowSourceWrites)
	return ok && v
}
