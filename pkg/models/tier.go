package models

import "fmt"

// Tier represents the authority level of a worker in the hierarchy.
type Tier string

const (
	// TierExecutive is for strategic, high-value workers.
	TierExecutive Tier = "executive"
	// TierManagement is for coordinating and planning workers.
	TierManagement Tier = "management"
	// TierOperational is for high-volume, task-level workers.
	TierOperational Tier = "operational"
)

// Tiers lists every tier from the top of the hierarchy down.
var Tiers = []Tier{TierExecutive, TierManagement, TierOperational}

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierExecutive, TierManagement, TierOperational:
		return true
	default:
		return false
	}
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
