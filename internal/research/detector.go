package research

import (
	"strings"
	"time"
)

const (
	DefaultSignificantWordChange = 50
	DefaultMinWords              = 20
	DefaultManualMinWords        = 5
	DefaultCooldown              = 24 * time.Hour
)

// Thresholds tune when automatic research fires.
type Thresholds struct {
	SignificantWordChange int
	MinWords              int
	ManualMinWords        int
	Cooldown              time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SignificantWordChange: DefaultSignificantWordChange,
		MinWords:              DefaultMinWords,
		ManualMinWords:        DefaultManualMinWords,
		Cooldown:              DefaultCooldown,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.SignificantWordChange <= 0 {
		t.SignificantWordChange = d.SignificantWordChange
	}
	if t.MinWords <= 0 {
		t.MinWords = d.MinWords
	}
	if t.ManualMinWords <= 0 {
		t.ManualMinWords = d.ManualMinWords
	}
	if t.Cooldown <= 0 {
		t.Cooldown = d.Cooldown
	}
	return t
}

// Snapshot is the persisted state the detector compares against.
type Snapshot struct {
	Title            string
	ContentText      string
	LastResearchedAt *time.Time
}

type Reason string

const (
	ReasonTooShort       Reason = "too_short"
	ReasonFirstSave      Reason = "first_save"
	ReasonTitleChanged   Reason = "title_changed"
	ReasonContentGrew    Reason = "content_grew"
	ReasonCooldown       Reason = "cooldown"
	ReasonNoSignificance Reason = "no_significant_change"
)

// Decision explains a detector verdict; Reason is meant for logs.
type Decision struct {
	Trigger    bool
	Reason     Reason
	Words      int
	WordsAdded int
}

// Detector decides whether an edit should (re)start research. It has no
// side effects; the clock is injectable for tests.
type Detector struct {
	th  Thresholds
	now func() time.Time
}

func NewDetector(th Thresholds, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{th: th.withDefaults(), now: now}
}

func (d *Detector) Thresholds() Thresholds { return d.th }

func (d *Detector) ShouldTrigger(stored Snapshot, newTitle, newContent string) bool {
	return d.Evaluate(stored, newTitle, newContent).Trigger
}

func (d *Detector) Evaluate(stored Snapshot, newTitle, newContent string) Decision {
	words := CountWords(newContent)
	dec := Decision{Words: words, WordsAdded: words - CountWords(stored.ContentText)}

	if words < d.th.MinWords {
		dec.Reason = ReasonTooShort
		return dec
	}
	if stored.LastResearchedAt == nil {
		dec.Trigger, dec.Reason = true, ReasonFirstSave
		return dec
	}

	titleChanged := stored.Title != newTitle
	grew := dec.WordsAdded >= d.th.SignificantWordChange
	if !titleChanged && !grew {
		dec.Reason = ReasonNoSignificance
		return dec
	}
	if d.now().Sub(*stored.LastResearchedAt) < d.th.Cooldown {
		dec.Reason = ReasonCooldown
		return dec
	}

	dec.Trigger = true
	if titleChanged {
		dec.Reason = ReasonTitleChanged
	} else {
		dec.Reason = ReasonContentGrew
	}
	return dec
}

// CountWords splits on runs of Unicode whitespace and counts the non-empty
// tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
