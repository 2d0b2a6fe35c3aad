package model

import "gorm.io/datatypes"

// LadderStateModel persists one ladder state per (symbol, side) key.
// StateJSON holds the encoded state; the row is last-write-wins.
type LadderStateModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex:idx_ladder_key,priority:1"`
	Side          string         `gorm:"column:side;uniqueIndex:idx_ladder_key,priority:2"`
	TradingDate   string         `gorm:"column:trading_date"`
	Stage         int            `gorm:"column:stage"`
	StateJSON     datatypes.JSON `gorm:"column:state_json;type:TEXT"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (LadderStateModel) TableName() string { return "ladder_states" }

// CooldownModel records the last fire timestamp per (symbol, rule) key.
type CooldownModel struct {
	ID           int64  `gorm:"column:id;primaryKey"`
	Symbol       string `gorm:"column:symbol;uniqueIndex:idx_cooldown_key,priority:1"`
	RuleID       string `gorm:"column:rule_id;uniqueIndex:idx_cooldown_key,priority:2"`
	LastFireUnix int64  `gorm:"column:last_fire_at"`
}

func (CooldownModel) TableName() string { return "alert_cooldowns" }
