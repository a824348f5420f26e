package service

import (
	"context"
	"errors"
	"time"

	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	apperrors "github.com/tiendaweb/tienda-backend/internal/errors"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"github.com/tiendaweb/tienda-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrWrongPassword         = errors.New("wrong password")
	ErrRevocationUnavailable = errors.New("token revocation store unavailable")
)

// TokenRevoker records tokens that must no longer be accepted.
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, token string, expiry time.Duration) error
}

type UpdateUserInput struct {
	Name     string
	Email    string
	Password string
}

type LoginResult struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"usuario"`
}

type UserService interface {
	Register(name, email, password string) (*model.User, error)
	ListUsers() ([]model.User, error)
	GetUserByID(id uint) (*model.User, error)
	UpdateUser(id uint, input UpdateUserInput) (*model.User, error)
	DeleteUser(id uint) error
	Login(email, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type userService struct {
	userRepo    repository.UserRepository
	revoker     TokenRevoker
	jwtSecret   string
	tokenExpiry time.Duration
}

// NewUserService wires the user service. revoker may be nil when Redis is
// disabled; Logout then fails with ErrRevocationUnavailable.
func NewUserService(
	userRepo repository.UserRepository,
	revoker TokenRevoker,
	jwtSecret string,
	tokenExpiry time.Duration,
) UserService {
	return &userService{
		userRepo:    userRepo,
		revoker:     revoker,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
	}
}

func (s *userService) Register(name, email, password string) (*model.User, error) {
	logger.Info("Attempting user registration", map[string]interface{}{
		"email": email,
		"name":  name,
	})

	existingUser, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existingUser != nil {
		logger.Warn("Registration failed: email already exists", map[string]interface{}{
			"email": email,
		})
		return nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"email": email,
		})
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(user); err != nil {
		// Lost a race with a concurrent registration.
		if apperrors.IsDuplicateKey(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   email,
	})
	return user, nil
}

func (s *userService) ListUsers() ([]model.User, error) {
	return s.userRepo.FindAll()
}

func (s *userService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser overwrites name and email. The password is re-hashed only when
// a new one is supplied.
func (s *userService) UpdateUser(id uint, input UpdateUserInput) (*model.User, error) {
	logger.Info("Updating user", map[string]interface{}{
		"user_id": id,
	})

	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	user.Name = input.Name
	user.Email = input.Email
	if input.Password != "" {
		hashed, err := util.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hashed
	}

	if err := s.userRepo.Update(user); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	logger.Info("User updated successfully", map[string]interface{}{
		"user_id":          id,
		"password_changed": input.Password != "",
	})
	return user, nil
}

func (s *userService) DeleteUser(id uint) error {
	if err := s.userRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	logger.Info("User deleted", map[string]interface{}{
		"user_id": id,
	})
	return nil
}

func (s *userService) Login(email, password string) (*LoginResult, error) {
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"email": email,
			})
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: wrong password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, ErrWrongPassword
	}

	token, err := util.GenerateToken(user.ID, s.jwtSecret, s.tokenExpiry)
	if err != nil {
		logger.Error("Failed to generate token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
	})
	return &LoginResult{Token: token, User: user.Public()}, nil
}

// Logout revokes token for the rest of its lifetime.
func (s *userService) Logout(ctx context.Context, token string) error {
	claims, err := util.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return err
	}
	if s.revoker == nil {
		return ErrRevocationUnavailable
	}

	if err := s.revoker.BlacklistToken(ctx, token, claims.RemainingValidity()); err != nil {
		return err
	}

	logger.Info("User logged out", map[string]interface{}{
		"user_id": claims.UserID,
	})
	return nil
}
