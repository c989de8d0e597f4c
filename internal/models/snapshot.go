package models

import "time"

// Snapshot is a full point-in-time copy of all four domain collections, the
// unit exchanged during reconciliation. Snapshots are ephemeral: only their
// constituent collections persist in the store.
type Snapshot struct {
	Orders    []Order         `json:"orders"`
	Products  []Product       `json:"products"`
	Inventory []InventoryItem `json:"inventory"`
	Settings  []Setting       `json:"settings"`
	LastSync  time.Time       `json:"lastSync"`
	DeviceID  string          `json:"deviceId"`
	UserID    string          `json:"userId"`
}

// IsEmpty reports whether the snapshot carries no records at all.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Orders) == 0 && len(s.Products) == 0 &&
		len(s.Inventory) == 0 && len(s.Settings) == 0
}

// Counts returns per-collection record counts, keyed by collection name.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		"orders":    len(s.Orders),
		"products":  len(s.Products),
		"inventory": len(s.Inventory),
		"settings":  len(s.Settings),
	}
}
