package persistence

import (
	"time"
)

// FloorModel represents the floors table. LifterEntryQR is the handover
// cell where shuttles board and leave the lifter on this floor.
type FloorModel struct {
	ID            int       `gorm:"column:id;primaryKey"`
	Name          string    `gorm:"column:name"`
	LifterEntryQR string    `gorm:"column:lifter_entry_qr"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (FloorModel) TableName() string {
	return "floors"
}

// CellModel represents the cells table. QR tags are unique per floor,
// not globally, so the primary key is composite.
type CellModel struct {
	FloorID       int         `gorm:"column:floor_id;primaryKey;not null"`
	Floor         *FloorModel `gorm:"foreignKey:FloorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	QR            string      `gorm:"column:qr;primaryKey;not null"`
	Col           int         `gorm:"column:col;not null"`
	Row           int         `gorm:"column:row;not null"`
	X             float64     `gorm:"column:x;not null"`
	Y             float64     `gorm:"column:y;not null"`
	Blocked       int         `gorm:"column:blocked;not null;default:0"` // 0 or 1 (SQLite compatible)
	HasBox        int         `gorm:"column:has_box;not null;default:0"`
	CellType      string      `gorm:"column:cell_type;not null;default:'TRAVEL'"`
	DirectionType string      `gorm:"column:direction_type;not null;default:'BOTH'"`
	PalletType    string      `gorm:"column:pallet_type"`
}

func (CellModel) TableName() string {
	return "cells"
}

// CellEdgeModel represents the cell_edges table. Edges are stored once
// per unordered pair; direction rules live on the cells.
type CellEdgeModel struct {
	ID       int     `gorm:"column:id;primaryKey;autoIncrement"`
	FloorID  int     `gorm:"column:floor_id;not null;index:idx_edges_floor"`
	FromQR   string  `gorm:"column:from_qr;not null"`
	ToQR     string  `gorm:"column:to_qr;not null"`
	Distance float64 `gorm:"column:distance;not null"`
}

func (CellEdgeModel) TableName() string {
	return "cell_edges"
}

// VehicleSessionModel represents the vehicle_sessions table. One row per
// vehicle, upserted on every state change so the controller can rebuild
// its fleet view after a restart.
type VehicleSessionModel struct {
	VehicleID string    `gorm:"column:vehicle_id;primaryKey;not null"`
	Kind      string    `gorm:"column:kind;not null"`
	FloorID   int       `gorm:"column:floor_id;not null"`
	NodeQR    string    `gorm:"column:node_qr"`
	X         float64   `gorm:"column:x;not null;default:0"`
	Y         float64   `gorm:"column:y;not null;default:0"`
	Status    string    `gorm:"column:status;not null;default:'IDLE'"`
	Carrying  int       `gorm:"column:carrying;not null;default:0"` // 0 or 1 (SQLite compatible)
	Battery   float64   `gorm:"column:battery;not null;default:0"`
	TaskID    string    `gorm:"column:task_id"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (VehicleSessionModel) TableName() string {
	return "vehicle_sessions"
}

// TaskEventModel represents the task_events table, the audit trail of
// everything a task went through.
type TaskEventModel struct {
	ID         int       `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID     string    `gorm:"column:task_id;not null;index:idx_task_events_task"`
	VehicleID  string    `gorm:"column:vehicle_id"`
	EventType  string    `gorm:"column:event_type;not null"`
	Detail     string    `gorm:"column:detail;type:text"` // JSON payload as text
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index:idx_task_events_time"`
}

func (TaskEventModel) TableName() string {
	return "task_events"
}
