// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type UserRegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=3,max=50"`
	Username string `json:"username"  validate:"omitempty,username"`
	Email    string `json:"email"     validate:"required,email,max=100"`
	Password string `json:"password"  validate:"required,min=6,max=255"`
	Role     string `json:"role"      validate:"omitempty,oneof=buyer store-admin factory-admin admin"`
	Phone    string `json:"phone"     validate:"required,phone"`
	Address  string `json:"address"   validate:"omitempty,max=200"`
}

func (r UserRegisterRequest) input() RegisterInput {
	return RegisterInput{
		Email:    r.Email,
		Username: r.Username,
		Name:     r.FullName,
		Password: r.Password,
		Role:     r.Role,
		Phone:    r.Phone,
		Address:  r.Address,
	}
}

type AdminRegisterRequest struct {
	Name     string `json:"name"     validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=255"`
	Role     string `json:"role"     validate:"omitempty,oneof=superAdmin analystAdmin factoryAdmin storeAdmin buyerAdmin"`
	Phone    string `json:"phone"    validate:"omitempty,phone"`
	Address  string `json:"address"  validate:"omitempty,max=200"`
}

func (r AdminRegisterRequest) input() RegisterInput {
	return RegisterInput{
		Email:    r.Email,
		Name:     r.Name,
		Password: r.Password,
		Role:     r.Role,
		Phone:    r.Phone,
		Address:  r.Address,
	}
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,max=255"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=100"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=255"`
}

type UserResponse struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

type AdminResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoginResponse struct {
	Account     any       `json:"account"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AccessTokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UsernameAvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}
