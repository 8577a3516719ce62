// Package aggregate derives the dashboard metrics snapshot from in-memory
// record sets. Compute is pure: identical inputs produce identical output and
// the source slices are never mutated, which keeps the live-update model
// stable across recomputations.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"gatehouse-analytics/internal/model"
)

const topDriverLimit = 5

// Input is the merged per-tenant state the engine computes from. Tenants
// fixes the iteration order; map contents are flattened in that order so the
// result does not depend on map iteration.
type Input struct {
	Tenants     []model.Tenant
	Entries     map[uuid.UUID][]model.EntryRecord
	Occurrences map[uuid.UUID][]model.OccurrenceRecord
	Drivers     map[uuid.UUID][]model.DriverRecord
	Degraded    []uuid.UUID
}

// Compute recalculates the full metrics snapshot for the resolved window.
func Compute(in Input, rng model.DateRange, cfg model.DurationConfig, now time.Time) model.MetricsSnapshot {
	cfg = cfg.Normalize()

	hourly := make([]int64, rng.HourlyBuckets())
	daily := make([]int64, rng.DailyBuckets())
	hourlyOcc := make([]int64, rng.HourlyBuckets())
	dailyOcc := make([]int64, rng.DailyBuckets())

	snapshot := model.MetricsSnapshot{
		HourlyEntries:     hourly,
		DailyEntries:      daily,
		HourlyOccurrences: hourlyOcc,
		DailyOccurrences:  dailyOcc,
		DegradedTenants:   in.Degraded,
		GeneratedFor:      rng,
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var durationSum float64
	var durationCount int64

	var ranking []driverTally
	rankIndex := map[string]int{}

	var delayed []model.DelayedVehicle
	delayedByPlate := map[string]int{}

	companyIndex := map[uuid.UUID]int{}
	companies := make([]model.CompanyStats, 0, len(in.Tenants))
	for _, tenant := range in.Tenants {
		companyIndex[tenant.ID] = len(companies)
		companies = append(companies, model.CompanyStats{TenantID: tenant.ID, Name: tenant.Name})
	}

	for _, tenant := range in.Tenants {
		for _, entry := range in.Entries[tenant.ID] {
			snapshot.TotalEntries++
			if i, ok := companyIndex[entry.TenantID]; ok {
				companies[i].Entries++
			}

			if entry.OnPremises() {
				snapshot.VehiclesInside++
			} else {
				minutes := entry.ExitTime.Sub(entry.EntryTime).Minutes()
				if minutes > 0 && minutes < 1440 {
					durationSum += minutes
					durationCount++
				}
			}

			if entry.EntryTime.IsZero() {
				continue
			}

			if !entry.EntryTime.Before(todayStart) && entry.EntryTime.Before(todayStart.AddDate(0, 0, 1)) {
				snapshot.EntriesToday++
			}
			if !entry.EntryTime.Before(monthStart) && entry.EntryTime.Before(monthStart.AddDate(0, 1, 0)) {
				snapshot.EntriesThisMonth++
			}

			if idx, ok := rng.HourIndex(entry.EntryTime); ok {
				hourly[idx]++
			}
			if idx, ok := rng.DayIndex(entry.EntryTime); ok {
				daily[idx]++
			}

			liveHours := entry.LiveDuration(now).Hours()
			switch {
			case liveHours < cfg.ShortLimitHours:
				snapshot.Durations.Under1h++
			case liveHours < cfg.MediumLimitHours:
				snapshot.Durations.Under4h++
			default:
				snapshot.Durations.Over4h++
			}

			if entry.OnPremises() && liveHours > cfg.DelayedThresholdHours {
				record := model.DelayedVehicle{
					EntryID:    entry.ID,
					TenantID:   entry.TenantID,
					Plate:      entry.Cached.VehiclePlate,
					DriverName: entry.Cached.DriverName,
					EntryTime:  entry.EntryTime,
					Hours:      liveHours,
				}
				plate := entry.Cached.VehiclePlate
				if plate == "" {
					delayed = append(delayed, record)
				} else if i, seen := delayedByPlate[plate]; seen {
					// duplicate open entries for one plate are a data
					// anomaly; the earliest entry wins
					if record.EntryTime.Before(delayed[i].EntryTime) {
						delayed[i] = record
					}
				} else {
					delayedByPlate[plate] = len(delayed)
					delayed = append(delayed, record)
				}
			}

			if name := entry.Cached.DriverName; name != "" {
				if i, seen := rankIndex[name]; seen {
					ranking[i].entries++
				} else {
					rankIndex[name] = len(ranking)
					ranking = append(ranking, driverTally{name: name, entries: 1})
				}
			}
		}

		for _, occ := range in.Occurrences[tenant.ID] {
			snapshot.TotalOccurrences++
			if i, ok := companyIndex[occ.TenantID]; ok {
				companies[i].Occurrences++
			}
			if idx, ok := rng.HourIndex(occ.CreatedAt); ok {
				hourlyOcc[idx]++
			}
			if idx, ok := rng.DayIndex(occ.CreatedAt); ok {
				dailyOcc[idx]++
			}
		}

		snapshot.TotalDrivers += int64(len(in.Drivers[tenant.ID]))
	}

	if durationCount > 0 {
		snapshot.AvgStayMinutes = clamp(durationSum / float64(durationCount))
	}

	classified := snapshot.Durations.Under1h + snapshot.Durations.Under4h + snapshot.Durations.Over4h
	snapshot.Durations.Total = classified
	if snapshot.Durations.Total < 1 {
		snapshot.Durations.Total = 1
	}

	snapshot.Durations.DelayedVehicles = delayed
	if snapshot.Durations.DelayedVehicles == nil {
		snapshot.Durations.DelayedVehicles = []model.DelayedVehicle{}
	}

	snapshot.TopDrivers = topDrivers(ranking, in)

	snapshot.BusiestHour = busiestHour(hourly)

	// kept formula from the source product: days approximated from the
	// hourly bucket count, not calendar-aligned
	days := int(math.Ceil(float64(rng.HourlyBuckets()) / 24))
	if days > 0 {
		snapshot.AvgDailyEntries = clamp(float64(snapshot.TotalEntries) / float64(days))
	}

	if len(in.Tenants) > 1 {
		snapshot.Companies = companies
	}

	return snapshot
}

type driverTally struct {
	name    string
	entries int64
}

func topDrivers(ranking []driverTally, in Input) []model.DriverRanking {
	ranked := make([]driverTally, len(ranking))
	copy(ranked, ranking)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].entries > ranked[j].entries
	})
	if len(ranked) > topDriverLimit {
		ranked = ranked[:topDriverLimit]
	}

	photos := map[string]*string{}
	for _, tenant := range in.Tenants {
		for _, driver := range in.Drivers[tenant.ID] {
			if driver.Name == "" || driver.PhotoURL == nil {
				continue
			}
			if _, seen := photos[driver.Name]; !seen {
				photos[driver.Name] = driver.PhotoURL
			}
		}
	}

	result := make([]model.DriverRanking, 0, len(ranked))
	for _, tally := range ranked {
		result = append(result, model.DriverRanking{
			Name:     tally.name,
			Entries:  tally.entries,
			PhotoURL: photos[tally.name],
		})
	}
	return result
}

// busiestHour returns the index of the maximum hourly count, first index on
// ties.
func busiestHour(hourly []int64) int {
	busiest := 0
	for i, count := range hourly {
		if count > hourly[busiest] {
			busiest = i
		}
	}
	return busiest
}

func clamp(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
