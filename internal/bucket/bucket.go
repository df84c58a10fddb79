package bucket

import (
	"fmt"
	"time"
)

const (
	// DefaultAlignment is the bucket width used when none is configured.
	DefaultAlignment = 10 * time.Second

	keyLayout   = "2006-01-02T15:04:05"
	dayLayout   = "20060102"
	hourLayout  = "15"
	labelLayout = "2006-01-02 15:04:05"
	titleLayout = "2006 January 02"
)

// Bucket is a timestamp floored to the bucketer alignment.
type Bucket struct {
	Time time.Time
}

// Key is the bucket timestamp used in artifact names.
func (b Bucket) Key() string {
	return b.Time.Format(keyLayout)
}

// Day is the YYYYMMDD partition key.
func (b Bucket) Day() string {
	return b.Time.Format(dayLayout)
}

// Hour is the HH partition key.
func (b Bucket) Hour() string {
	return b.Time.Format(hourLayout)
}

// Label is the human readable timestamp used in report rows and status lines.
func (b Bucket) Label() string {
	return b.Time.Format(labelLayout)
}

// Title is the daily report heading, e.g. "2024 June 01".
func (b Bucket) Title() string {
	return b.Time.Format(titleLayout)
}

// Bucketer maps wall-clock times to buckets.
type Bucketer struct {
	alignment time.Duration
}

// New creates a Bucketer. The alignment must be a whole number of seconds
// that evenly divides a day.
func New(alignment time.Duration) (*Bucketer, error) {
	if err := ValidateAlignment(alignment); err != nil {
		return nil, err
	}
	return &Bucketer{alignment: alignment}, nil
}

// ValidateAlignment checks that buckets tile a day exactly.
func ValidateAlignment(alignment time.Duration) error {
	if alignment < time.Second {
		return fmt.Errorf("alignment must be at least 1s, got %v", alignment)
	}
	if alignment%time.Second != 0 {
		return fmt.Errorf("alignment must be a whole number of seconds, got %v", alignment)
	}
	if (24*time.Hour)%alignment != 0 {
		return fmt.Errorf("alignment %v does not divide a day evenly", alignment)
	}
	return nil
}

// Alignment returns the bucket width.
func (b *Bucketer) Alignment() time.Duration {
	return b.alignment
}

// Bucket floors t to the alignment, counted from local midnight of t's location.
// Sub-second precision is dropped. Bucketing a bucket time returns it unchanged.
func (b *Bucketer) Bucket(t time.Time) Bucket {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	elapsed -= elapsed % b.alignment
	return Bucket{Time: midnight.Add(elapsed)}
}
