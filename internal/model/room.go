package model

import (
	"time"
)

// CategoryCustom marks user-created rooms; only these may be renamed or deleted
const CategoryCustom = "Custom"

// AccessType room join policy
type AccessType string

const (
	AccessOpen     AccessType = "open"
	AccessApproval AccessType = "approval"
)

// Room group shopping session metadata
type Room struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Creator    string     `json:"creator"`
	Members    []string   `json:"members"`
	AccessType AccessType `json:"accessType"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IsCustom check if room was created by a user
func (r *Room) IsCustom() bool {
	return r.Category == CategoryCustom
}

// Address delivery address attached to a room
type Address struct {
	Name       string `json:"name" binding:"notblank"`
	Phone      string `json:"phone,omitempty" binding:"phone"`
	Line1      string `json:"line1" binding:"notblank"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" binding:"notblank"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty" binding:"max=16"`
	Country    string `json:"country,omitempty"`
}
