package model

import (
	"time"

	"gorm.io/datatypes"
)

// Equipment is the sub-record embedded in a report. Paint and solvent are
// referenced by business code, not by a generated identifier.
type Equipment struct {
	PaintCode   string `json:"paint_code"`
	SolventCode string `json:"solvent_code"`
	Nozzle      string `json:"nozzle"`
	Pressure    string `json:"pressure"`
	Notes       string `json:"notes"`
}

// Attachment links a report to an uploaded blob.
type Attachment struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Report is a maintenance report for a client, optionally tied to one machine.
type Report struct {
	ID           string                          `gorm:"primaryKey;size:36" json:"id"`
	ClientID     string                          `gorm:"size:64;index;not null" json:"client_id"`
	MachineID    string                          `gorm:"size:64;index" json:"machine_id"`
	Date         string                          `gorm:"size:10" json:"date"` // YYYY-MM-DD
	Technician   string                          `gorm:"size:256" json:"technician"`
	WorkType     string                          `gorm:"size:64" json:"work_type"`
	Description  string                          `json:"description"`
	Observations string                          `json:"observations"`
	Equipment    datatypes.JSONType[Equipment]   `json:"equipment"`
	Signature    string                          `json:"signature"` // data URL
	Attachments  datatypes.JSONSlice[Attachment] `json:"attachments"`
	CreatedAt    time.Time                       `gorm:"not null" json:"created_at"`
}

// TableName pins the collection name.
func (Report) TableName() string { return CollectionReports }
