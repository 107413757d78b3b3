package models

import "time"

type Topic struct {
	ID        uint      `gorm:"primaryKey"`
	AuthorID  uint      `gorm:"not null;index"`
	Author    User      `gorm:"constraint:OnDelete:CASCADE;"`
	Title     string    `gorm:"size:100;uniqueIndex;not null"`
	Question  string    `gorm:"size:2048;uniqueIndex;not null"`
	Upload    string    `gorm:"size:255"`
	Section   string    `gorm:"size:10;index;default:general"`
	Views     uint      `gorm:"default:0"`
	TimeAdded time.Time `gorm:"autoCreateTime;index"`
	Comments  []Comment `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey"`
	TopicID   uint      `gorm:"not null;index"`
	AuthorID  uint      `gorm:"not null;index"`
	Author    User      `gorm:"constraint:OnDelete:CASCADE;"`
	Comment   string    `gorm:"size:2048;not null"`
	Upload    string    `gorm:"size:255"`
	TimeAdded time.Time `gorm:"autoCreateTime;index"`
}

// Section is a named subforum.
type Section struct {
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

const SectionGeneral = "general"

// Sections lists every subforum in display order.
var Sections = []Section{
	{SectionGeneral, "General"},
	{"templates", "Templates"},
	{"orm", "ORM"},
	{"testing", "Testing"},
	{"drf", "REST APIs"},
	{"celery", "Task queues"},
	{"channels", "Websockets"},
	{"deploy", "Deploy"},
}

// SectionName returns the display name for alias and whether alias is a known section.
func SectionName(alias string) (string, bool) {
	for _, s := range Sections {
		if s.Alias == alias {
			return s.Name, true
		}
	}
	return "", false
}

// SectionsMap maps section aliases to display names.
func SectionsMap() map[string]string {
	m := make(map[string]string, len(Sections))
	for _, s := range Sections {
		m[s.Alias] = s.Name
	}
	return m
}
