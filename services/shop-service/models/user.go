package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleSeller = "seller"

	DefaultUserPhoto = "default.jpeg"
)

// ValidRole reports whether r is an assignable role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAdmin || r == RoleSeller
}

type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName            string             `bson:"firstName" json:"firstName"`
	LastName             string             `bson:"lastName" json:"lastName"`
	Email                string             `bson:"email" json:"email"`
	Phone                string             `bson:"phone" json:"phone"`
	Photo                string             `bson:"photo" json:"photo"`
	DateOfBirth          *time.Time         `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Password             string             `bson:"password" json:"-"`
	Role                 string             `bson:"role" json:"role"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               bool               `bson:"active" json:"-"`
}

// PasswordChangedAfter reports whether the password changed after a token issued at iat
// (unix seconds) was signed.
func (u *User) PasswordChangedAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat < u.PasswordChangedAt.Unix()
}

type UserSummary struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	FirstName string             `bson:"firstName" json:"firstName"`
	LastName  string             `bson:"lastName" json:"lastName"`
	Photo     string             `bson:"photo" json:"photo"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Photo: u.Photo}
}
