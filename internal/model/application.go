package model

import "time"

// Application mirrors a candidate application owned by the recruitment
// service. Slots only need its identity and the denormalized display fields.
type Application struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	CandidateName string    `gorm:"size:256;not null" json:"candidate_name"`
	JobTitle      string    `gorm:"size:256" json:"job_title"`
	Status        string    `gorm:"size:32" json:"status"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
