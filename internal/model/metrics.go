package model

import (
	"time"

	"github.com/google/uuid"
)

// MetricsSnapshot is the full derived dashboard state. It is recomputed from
// scratch on every input change and never persisted.
type MetricsSnapshot struct {
	VehiclesInside   int64   `json:"vehicles_inside"`
	EntriesToday     int64   `json:"entries_today"`
	EntriesThisMonth int64   `json:"entries_this_month"`
	AvgStayMinutes   float64 `json:"avg_stay_minutes"`
	AvgDailyEntries  float64 `json:"avg_daily_entries"`
	BusiestHour      int     `json:"busiest_hour"`
	TotalEntries     int64   `json:"total_entries"`
	TotalDrivers     int64   `json:"total_drivers"`
	TotalOccurrences int64   `json:"total_occurrences"`

	HourlyEntries     []int64 `json:"hourly_entries"`
	DailyEntries      []int64 `json:"daily_entries"`
	HourlyOccurrences []int64 `json:"hourly_occurrences"`
	DailyOccurrences  []int64 `json:"daily_occurrences"`

	Durations  DurationStats   `json:"duration_stats"`
	TopDrivers []DriverRanking `json:"top_drivers"`

	// Companies is populated only when the aggregation ran over more than
	// one tenant.
	Companies []CompanyStats `json:"company_stats,omitempty"`

	// DegradedTenants lists tenants whose data could not be loaded and
	// therefore contributed an empty record set.
	DegradedTenants []uuid.UUID `json:"degraded_tenants,omitempty"`

	GeneratedFor DateRange `json:"generated_for"`
}

// DurationStats classifies every entry by live stay duration. The field names
// reflect the product's default boundaries (1h/4h); the actual limits are
// configurable. Total floors at 1 so ratio displays never divide by zero.
type DurationStats struct {
	Under1h         int64            `json:"under_1h"`
	Under4h         int64            `json:"under_4h"`
	Over4h          int64            `json:"over_4h"`
	DelayedVehicles []DelayedVehicle `json:"delayed_vehicles"`
	Total           int64            `json:"total"`
}

// DelayedVehicle is a vehicle still on premises past the overstay threshold.
type DelayedVehicle struct {
	EntryID    uuid.UUID `json:"entry_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Plate      string    `json:"plate"`
	DriverName string    `json:"driver_name"`
	EntryTime  time.Time `json:"entry_time"`
	Hours      float64   `json:"hours"`
}

type DriverRanking struct {
	Name     string  `json:"name"`
	Entries  int64   `json:"entries"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

type CompanyStats struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Entries     int64     `json:"entries"`
	Occurrences int64     `json:"occurrences"`
}

// EntryView is a flattened listing row: cached fields first, live driver data
// only as fallback.
type EntryView struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	EntryTime      time.Time  `json:"entry_time"`
	ExitTime       *time.Time `json:"exit_time,omitempty"`
	DriverName     string     `json:"driver_name"`
	DriverDocument string     `json:"driver_document"`
	VehiclePlate   string     `json:"vehicle_plate"`
	VehicleModel   string     `json:"vehicle_model"`
	OnPremises     bool       `json:"on_premises"`
}
