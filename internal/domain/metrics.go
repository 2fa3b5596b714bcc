package domain

import (
	"fmt"
	"math"
	"time"
)

// rideTypes is the fixed allow-list of activity types that count as cycling
// efforts. Everything else is filtered before any metrics are derived.
var rideTypes = map[string]struct{}{
	"Ride":        {},
	"VirtualRide": {},
	"EBikeRide":   {},
}

// EligibilityOf decides whether a fetched activity qualifies for the energy
// ledger. The returned reason is empty when the activity is eligible;
// otherwise it names the failed gate. Ineligibility is expected filtering,
// never an error.
func EligibilityOf(activityType string, averageWatts float64, movingTimeSeconds int) (string, bool) {
	if _, ok := rideTypes[activityType]; !ok {
		return fmt.Sprintf("activity type %q is not a ride", activityType), false
	}
	if averageWatts <= 0 {
		return "no usable power data", false
	}
	if movingTimeSeconds <= 0 {
		return "no moving time", false
	}
	return "", true
}

// SessionMetrics are the derived values stored on a session.
type SessionMetrics struct {
	Date            time.Time
	DurationMinutes int
	AverageWatts    int
	EnergyKWh       float64
}

// ComputeSessionMetrics converts raw activity fields into ledger values.
// Energy is derived from the already-rounded watts so the displayed
// watts x hours x kWh relationship stays internally consistent; the
// leaderboard sums these derived values, never raw provider data.
func ComputeSessionMetrics(movingTimeSeconds int, averageWatts float64, start time.Time) SessionMetrics {
	watts := int(math.Round(averageWatts))
	hours := float64(movingTimeSeconds) / 3600
	energy := math.Round(float64(watts)*hours/1000*100) / 100

	day := start.UTC()
	return SessionMetrics{
		Date:            time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		DurationMinutes: int(math.Round(float64(movingTimeSeconds) / 60)),
		AverageWatts:    watts,
		EnergyKWh:       energy,
	}
}
