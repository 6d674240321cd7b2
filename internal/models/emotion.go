// Package models defines the client-side records kept in the local store and
// exchanged with the Goalify server.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Intensity grades how strongly an emotion was felt. Integer-backed so it
// travels over the wire and into the store unchanged.
type Intensity int

const (
	IntensityLow    Intensity = 1
	IntensityMedium Intensity = 2
	IntensityHigh   Intensity = 3
)

// ParseIntensity clamps unknown wire values to medium, matching the lenient
// decoding the app has always done for server data.
func ParseIntensity(v int) Intensity {
	switch Intensity(v) {
	case IntensityLow, IntensityMedium, IntensityHigh:
		return Intensity(v)
	default:
		return IntensityMedium
	}
}

// EmotionRecord is a journaled mood entry. LastModified is the sole
// conflict-resolution key: it is bumped on every local mutation and compared
// against the server copy during merge (last write wins).
type EmotionRecord struct {
	ID               string
	EmotionType      string
	Intensity        Intensity
	Trigger          string
	UnhealthyBeliefs string
	HealthyEmotion   string
	CopingStrategies string
	RecordDate       time.Time
	LastModified     time.Time
}

// NewEmotionRecord creates a locally-authored record stamped with now for
// both the record date and the modification time.
func NewEmotionRecord(emotionType string, intensity Intensity, now time.Time) *EmotionRecord {
	return &EmotionRecord{
		ID:           uuid.NewString(),
		EmotionType:  emotionType,
		Intensity:    intensity,
		RecordDate:   now,
		LastModified: now,
	}
}

// Touch bumps LastModified. Call on every local edit.
func (e *EmotionRecord) Touch(now time.Time) {
	e.LastModified = now
}
