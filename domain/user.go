package domain

import "time"

// Role is the access level of a local account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

// UserStatus defines the lifecycle states of an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusPending  UserStatus = "pending"
	UserStatusRejected UserStatus = "rejected"
)

// Account is the durable local identity. The username is unique and never
// changes after creation; the LinuxDo linkage fields are set when the account
// was provisioned (or later linked) through the OAuth flow.
type Account struct {
	Username        string     `bson:"username" json:"username"`
	PasswordHash    string     `bson:"password_hash" json:"-"`
	Role            Role       `bson:"role" json:"role"`
	Banned          bool       `bson:"banned" json:"banned"`
	Status          UserStatus `bson:"status" json:"status"`
	RegisteredAt    time.Time  `bson:"registered_at" json:"registeredAt"`
	LinuxDoID       int64      `bson:"linuxdo_id,omitempty" json:"linuxdoId,omitempty"`
	LinuxDoUsername string     `bson:"linuxdo_username,omitempty" json:"linuxdoUsername,omitempty"`
}

// PendingUser is a direct registration waiting for administrator approval.
// It is promoted to an Account on approval or discarded on rejection.
type PendingUser struct {
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	RegisteredAt time.Time `bson:"registered_at" json:"registeredAt"`
}

// RegistrationStats summarizes the user population for limit enforcement.
type RegistrationStats struct {
	TotalUsers   int `json:"totalUsers"`
	PendingUsers int `json:"pendingUsers"`
}
