package mongodb

const (
	// UsersCollection holds every Account regardless of lifecycle status.
	UsersCollection = "users"

	// PendingUsersCollection stages direct registrations awaiting approval.
	PendingUsersCollection = "pending_users"
)
