package agent

import (
	"time"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Timeouts holds the per-call timeout for each tier.
type Timeouts map[models.Tier]time.Duration

// DefaultTimeouts returns the per-call timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		models.TierExecutive:   90 * time.Second,
		models.TierManagement:  60 * time.Second,
		models.TierOperational: 30 * time.Second,
	}
}

// For returns the timeout for a worker. A worker SLA shorter than the tier
// timeout takes precedence.
func (t Timeouts) For(desc models.WorkerDescriptor) time.Duration {
	d, ok := t[desc.Tier]
	if !ok || d <= 0 {
		d = DefaultTimeouts()[desc.Tier]
	}
	if d <= 0 {
		d = 30 * time.Second
	}
	if desc.SLA > 0 && desc.SLA < d {
		d = desc.SLA
	}
	return d
}
