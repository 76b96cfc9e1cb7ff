package model

import (
	"time"
)

// Snapshot one persisted collection, stored whole
type Snapshot struct {
	Name      string    `gorm:"type:varchar(64);primaryKey;comment:snapshot name" json:"name"`
	Payload   []byte    `gorm:"type:longblob;not null;comment:JSON document" json:"payload"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:last write" json:"updated_at"`
}

// TableName set name
func (Snapshot) TableName() string {
	return "snapshots"
}
