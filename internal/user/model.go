package user

import "time"

const (
	DefaultProfilePhoto = "https://res.cloudinary.com/df4usbpof/image/upload/v1764339278/image_profile_defaut_rvissf.jpg"
	DefaultBio          = "Happy to be at HighFive University"
)

// User is the credential-store record. PasswordHash never leaves the server:
// it is excluded from JSON so every serialized User is already sanitized.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePhoto string    `json:"profilePhoto"`
	Bio          string    `json:"bio"`
	Followers    []string  `json:"followers"`
	Following    []string  `json:"following"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FollowChange reports both adjacency lists after a toggle completes.
type FollowChange struct {
	ActorID         string   `json:"-"`
	TargetID        string   `json:"-"`
	Following       bool     `json:"following"`
	ActorFollowing  []string `json:"actorFollowing"`
	TargetFollowers []string `json:"targetFollowers"`
}

type ProfileInput struct {
	FullName string `json:"fullName"`
	Bio      string `json:"bio"`
}
