package model

const (
	DefaultShortLimitHours       = 1.0
	DefaultMediumLimitHours      = 4.0
	DefaultDelayedThresholdHours = 12.0
)

// DurationConfig holds the stay-classification boundaries: stays shorter than
// ShortLimitHours are short, shorter than MediumLimitHours are medium, the
// rest long. DelayedThresholdHours flags still-open entries as overstayed.
type DurationConfig struct {
	ShortLimitHours       float64 `json:"short_limit_hours"`
	MediumLimitHours      float64 `json:"medium_limit_hours"`
	DelayedThresholdHours float64 `json:"delayed_threshold_hours"`
}

// Normalize fills defaults and clamps the medium boundary to be at least the
// short one. Invalid boundaries are corrected here, never passed through to
// the aggregation pass.
func (c DurationConfig) Normalize() DurationConfig {
	if c.ShortLimitHours <= 0 {
		c.ShortLimitHours = DefaultShortLimitHours
	}
	if c.MediumLimitHours <= 0 {
		c.MediumLimitHours = DefaultMediumLimitHours
	}
	if c.MediumLimitHours < c.ShortLimitHours {
		c.MediumLimitHours = c.ShortLimitHours
	}
	if c.DelayedThresholdHours <= 0 {
		c.DelayedThresholdHours = DefaultDelayedThresholdHours
	}
	return c
}
