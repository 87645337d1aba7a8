// ==============================================
// File: internal/storage/models/route_audit.go
// ==============================================
package models

import "time"

// RouteAudit records one route decision. Amount columns hold raw
// token-unit decimal strings so no precision is lost to floats.
type RouteAudit struct {
	BaseModel
	Direction      string    `gorm:"index;not null;type:varchar(16)"`
	Route          string    `gorm:"not null;type:varchar(16)"`
	InputAmount    string    `gorm:"not null;type:varchar(96)"`
	ExpectedOutput string    `gorm:"type:varchar(96)"`
	SavingsBps     uint64    `gorm:"not null"`
	DisabledReason string    `gorm:"type:text"`
	ElapsedMs      float64   `gorm:"type:decimal(10,3)"`
	ObservedAt     time.Time `gorm:"index"`
}
