package models

import "time"

type User struct {
	UserID        string    `json:"userid" bson:"userid"`
	Name          string    `json:"name" bson:"name"`
	Email         string    `json:"email" bson:"email"`
	Password      string    `json:"-" bson:"password,omitempty"`
	Image         string    `json:"image,omitempty" bson:"image,omitempty"`
	GitHubID      int64     `json:"-" bson:"githubId,omitempty"`
	EmailVerified bool      `json:"email_verified" bson:"emailVerified"`
	RefreshToken  string    `json:"-" bson:"refreshToken,omitempty"`
	RefreshExpiry time.Time `json:"-" bson:"refreshExpiry,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updatedAt"`
}

// UserProfileResponse is what clients see about an account.
type UserProfileResponse struct {
	UserID string `json:"userid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Image  string `json:"image,omitempty"`
}

func (u *User) Profile() UserProfileResponse {
	return UserProfileResponse{
		UserID: u.UserID,
		Name:   u.Name,
		Email:  u.Email,
		Image:  u.Image,
	}
}
