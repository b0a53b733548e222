package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Fullname     string     `json:"fullname"`
	Username     string     `json:"username"`
	Gender       string     `json:"gender,omitempty"`
	Avatar       string     `json:"avatar"`
	LastLogout   *time.Time `json:"last_logout"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PublicProfile is the subset of User safe to hand to other users.
type PublicProfile struct {
	ID         string     `json:"id"`
	Fullname   string     `json:"fullname"`
	Username   string     `json:"username"`
	Avatar     string     `json:"avatar"`
	LastLogout *time.Time `json:"last_logout"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		Fullname:   u.Fullname,
		Username:   u.Username,
		Avatar:     u.Avatar,
		LastLogout: u.LastLogout,
	}
}

type RegisterRequest struct {
	Fullname string `json:"fullname" validate:"required"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         PublicProfile `json:"user"`
}
