// Package events defines the payloads published to Kafka for downstream
// projections.
package events

// SessionCreated is emitted when a session row is accepted into the ledger,
// whether webhook-imported or manually entered.
type SessionCreated struct {
	SessionID       string  `json:"session_id"`
	UserID          string  `json:"user_id"`
	Date            string  `json:"date"` // YYYY-MM-DD
	DurationMinutes int     `json:"duration_minutes"`
	AverageWatts    int     `json:"average_watts"`
	EnergyKWh       float64 `json:"energy_kwh"`
	Source          string  `json:"source"`
}
