package models

import (
	"strings"
	"time"
)

// UserType distinguishes the two roles in the exchange: generators post
// listings, collectors claim and complete waste pickups.
type UserType string

const (
	UserTypeGenerator UserType = "generator"
	UserTypeCollector UserType = "collector"
)

// ValidUserType reports whether t is one of the known roles.
func ValidUserType(t UserType) bool {
	return t == UserTypeGenerator || t == UserTypeCollector
}

// NotificationPreferences allows users to control email notifications.
type NotificationPreferences struct {
	Assignment bool `bson:"assignment" json:"assignment"`
	Completion bool `bson:"completion" json:"completion"`
	Comment    bool `bson:"comment" json:"comment"`
	Enquiry    bool `bson:"enquiry" json:"enquiry"`
}

// DefaultNotificationPreferences returns the opt-out defaults: everything on.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Assignment: true,
		Completion: true,
		Comment:    true,
		Enquiry:    true,
	}
}

// User represents a user in the system.
type User struct {
	Base                    `bson:",inline"`
	Name                    string                   `bson:"name" json:"name"`
	Email                   string                   `bson:"email" json:"email"`
	PasswordHash            string                   `bson:"password" json:"-"` // Store hash, not plaintext
	UserType                UserType                 `bson:"user_type" json:"user_type"`
	IsAdmin                 bool                     `bson:"is_admin" json:"is_admin"`
	Location                *LocationData            `bson:"location,omitempty" json:"location,omitempty"`
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notification_preferences,omitempty"`
	UpdatedAt               time.Time                `bson:"updated_at" json:"updated_at"`
	CreatedAt               time.Time                `bson:"created_at" json:"created_at"`
	Deleted                 bool                     `bson:"deleted" json:"-"` // Soft delete flag
}

// DisplayName returns the user's name, falling back to the local part of
// their email address when no name was given.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// WantsNotification reports whether the user has the given notification kind
// enabled. A user without stored preferences gets the defaults.
func (u *User) WantsNotification(kind string) bool {
	prefs := u.NotificationPreferences
	if prefs == nil {
		return true
	}
	switch kind {
	case "assignment":
		return prefs.Assignment
	case "completion":
		return prefs.Completion
	case "comment":
		return prefs.Comment
	case "enquiry":
		return prefs.Enquiry
	}
	return true
}
