package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
	"messenger-backend/internal/store"
	"messenger-backend/internal/utils"
)

type UserService struct {
	directory store.UserDirectory
	validate  *validator.Validate
}

func NewUserService(directory store.UserDirectory) *UserService {
	return &UserService{
		directory: directory,
		validate:  validator.New(),
	}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Fullname:     req.Fullname,
		Username:     req.Username,
		Gender:       req.Gender,
		Avatar:       avatarURL(req.Gender, req.Username),
		PasswordHash: string(hash),
	}
	if err := s.directory.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.ErrConflict
		}
		return nil, apperr.Storef("create user", err)
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	user, err := s.directory.UserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Storef("lookup user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.ErrUnauthorized
	}

	access, err := GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Public(),
	}, nil
}

// Logout stamps the user's last-logout time. It is called both from the
// logout endpoint and on websocket disconnect, where it doubles as
// "last seen".
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.directory.SetLastLogout(ctx, userID, time.Now()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrNotFound
		}
		return apperr.Storef("set last logout", err)
	}
	return nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	p, err := s.directory.PublicProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Storef("load profile", err)
	}
	return p, nil
}

// Search returns users whose handle starts with prefix, case-insensitive,
// never including the searching user.
func (s *UserService) Search(ctx context.Context, prefix, selfID string) ([]models.PublicProfile, error) {
	if prefix == "" {
		return nil, apperr.ErrValidation
	}
	out, err := s.directory.SearchByUsernamePrefix(ctx, prefix, selfID)
	if err != nil {
		return nil, apperr.Storef("search users", err)
	}
	return out, nil
}

func (s *UserService) Usernames(ctx context.Context) ([]string, error) {
	names, err := s.directory.ListUsernames(ctx)
	if err != nil {
		return nil, apperr.Storef("list usernames", err)
	}
	return names, nil
}

// avatarURL picks a generated avatar for new accounts.
func avatarURL(gender, username string) string {
	avatarType := "girl"
	if gender == "male" {
		avatarType = "boy"
	}
	return fmt.Sprintf("https://avatar.iran.liara.run/public/%s?username=%s", avatarType, url.QueryEscape(username))
}

func GenerateJWT(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour * 48).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_SECRET", "secret")))
}

func GenerateRefreshToken(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"type":     "refresh",
		"exp":      time.Now().Add(time.Hour * 24 * 30).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_SECRET", "secret")))
}

func ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(utils.GetEnv("JWT_SECRET", "secret")), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func ValidateRefreshToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if t, _ := claims["type"].(string); t != "refresh" {
		return nil, errors.New("not a refresh token")
	}
	return claims, nil
}
