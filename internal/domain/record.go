package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerationStatus is the terminal state of a generation record.
type GenerationStatus string

const (
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Counter names a mutable engagement counter on a record.
type Counter string

const (
	CounterFavorite Counter = "favorite"
	CounterDownload Counter = "download"
	CounterShare    Counter = "share"
)

// ParseCounter validates a counter name from a URL segment.
func ParseCounter(s string) (Counter, bool) {
	switch Counter(s) {
	case CounterFavorite, CounterDownload, CounterShare:
		return Counter(s), true
	}
	return "", false
}

// GenerationRecord is written once per generation outcome. Prompt holds only
// the user-visible prompt; hidden guard text never reaches it. Core fields are
// immutable after creation, only the counters change.
type GenerationRecord struct {
	ID            string
	UserID        string
	BackendKey    string
	TemplateID    string
	Prompt        string
	ImageURL      string
	Cost          decimal.Decimal
	Quality       Quality
	AspectRatio   AspectRatio
	Status        GenerationStatus
	ErrorMessage  string
	Favorite      bool
	DownloadCount int
	ShareCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
