package model

import (
	"time"

	"github.com/google/uuid"
)

// CachedData is the denormalized driver/vehicle snapshot taken when a gate
// entry is registered. It is the primary read source for listings and
// rankings; the live driver record is consulted only when a field is absent.
type CachedData struct {
	DriverName     string `json:"driver_name" gorm:"column:driver_name"`
	DriverDocument string `json:"driver_document" gorm:"column:driver_document"`
	VehiclePlate   string `json:"vehicle_plate" gorm:"column:vehicle_plate"`
	VehicleModel   string `json:"vehicle_model" gorm:"column:vehicle_model"`
}

// EntryRecord is one gate-in event. ExitTime is nil while the vehicle is on
// premises and is set exactly once when the exit is registered. EntryTime may
// be the zero value on malformed operator records; such entries are excluded
// from all time bucketing.
type EntryRecord struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
	DriverID  *uuid.UUID `json:"driver_id,omitempty"`
	VehicleID *uuid.UUID `json:"vehicle_id,omitempty"`
	Cached    CachedData `json:"cached_data" gorm:"embedded;embeddedPrefix:cached_"`
	CreatedAt time.Time  `json:"created_at"`
}

func (EntryRecord) TableName() string { return "entry_records" }

func (e EntryRecord) OnPremises() bool { return e.ExitTime == nil }

// LiveDuration is the elapsed stay: up to the exit for completed entries,
// up to now for entries still on premises.
func (e EntryRecord) LiveDuration(now time.Time) time.Duration {
	if e.ExitTime != nil {
		return e.ExitTime.Sub(e.EntryTime)
	}
	return now.Sub(e.EntryTime)
}

// OccurrenceRecord is an incident report. It correlates with entries only by
// time bucket, never by foreign key.
type OccurrenceRecord struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (OccurrenceRecord) TableName() string { return "occurrence_records" }

type DriverRecord struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	PhotoURL  *string   `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (DriverRecord) TableName() string { return "driver_records" }
