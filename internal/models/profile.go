package models

import "time"

// Capability is the role a profile acts under.
type Capability string

const (
	CapabilityStudent Capability = "student"
	CapabilityTutor   Capability = "tutor"
	CapabilityParent  Capability = "parent"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityStudent, CapabilityTutor, CapabilityParent:
		return true
	}
	return false
}

type Profile struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Role         Capability `json:"role"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsStudent reports whether chat exchanges of this profile are logged.
func (p *Profile) IsStudent() bool {
	return p != nil && p.Role == CapabilityStudent
}

type Appointment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	TutorID     string    `json:"tutor_id"`
	Subject     string    `json:"subject"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}
