package triage

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// QueueEntry is the summary handed to the care-assignment side.
type QueueEntry struct {
	TriageID         uuid.UUID  `json:"triage_id"`
	EncounterID      uuid.UUID  `json:"encounter_id"`
	PatientID        *uuid.UUID `json:"patient_id,omitempty"`
	PatientBirthDate *time.Time `json:"patient_birth_date,omitempty"`
	Level            Level      `json:"level"`
	Color            string     `json:"color"`
	Pathway          Pathway    `json:"pathway"`
	ChiefComplaint   string     `json:"chief_complaint"`
	WaitingSince     time.Time  `json:"waiting_since"`
	WaitedMinutes    int        `json:"waited_minutes"`
	MaxWaitMinutes   int        `json:"max_wait_minutes"`
	Overdue          bool       `json:"overdue"`
	Escalated        bool       `json:"escalated"`
	ProtocolCode     *string    `json:"protocol_code,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// OrderQueue drops non-active records and sorts the rest by final priority,
// then creation time. The record id breaks exact timestamp ties so the order
// is total. The input slice is not modified.
func OrderQueue(records []*TriageRecord) []*TriageRecord {
	out := make([]*TriageRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.IsActive() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FinalLevel != b.FinalLevel {
			return a.FinalLevel.MoreUrgentThan(b.FinalLevel)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return out
}

// Summarize builds the queue entry for r as of now.
func Summarize(r *TriageRecord, now time.Time) QueueEntry {
	info, _ := Describe(r.FinalLevel)
	waited := int(now.Sub(r.WaitingSince) / time.Minute)
	if waited < 0 {
		waited = 0
	}
	return QueueEntry{
		TriageID:         r.ID,
		EncounterID:      r.EncounterID,
		PatientID:        r.PatientID,
		PatientBirthDate: r.PatientBirthDate,
		Level:            r.FinalLevel,
		Color:            info.Color,
		Pathway:          r.Pathway,
		ChiefComplaint:   r.ChiefComplaint,
		WaitingSince:     r.WaitingSince,
		WaitedMinutes:    waited,
		MaxWaitMinutes:   info.MaxWaitMins,
		Overdue:          now.Sub(r.WaitingSince) > info.MaxWait,
		Escalated:        r.Escalated(),
		ProtocolCode:     r.ProtocolCode,
		CreatedAt:        r.CreatedAt,
	}
}

// IsCritical reports whether l is red or orange.
func IsCritical(l Level) bool {
	return l == LevelRed || l == LevelOrange
}
