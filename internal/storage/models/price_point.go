// ==============================================
// File: internal/storage/models/price_point.go
// ==============================================
package models

// PricePoint mirrors one sampled point of a price history series.
// SeriesKey ties the row to the in-memory cache window it came from.
type PricePoint struct {
	BaseModel
	SeriesKey   string `gorm:"uniqueIndex:idx_series_block;not null;type:varchar(32)"`
	BlockNumber uint64 `gorm:"uniqueIndex:idx_series_block;not null"`
	Timestamp   uint64 `gorm:"index;not null"`
	PriceUsd    uint64 `gorm:"not null"`
}
