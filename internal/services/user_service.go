package services

import (
	"errors"
	"shop_concierge/internal/models"
	"shop_concierge/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService is the principal provider: the identity provider
// authenticates, this resolves the authenticated identity to a local
// principal with a role.
type UserService interface {
	EnsurePrincipal(email, name string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetAllUsers() ([]models.User, error)
	CreateAdmin(email, name, password string) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// EnsurePrincipal is an idempotent upsert by email. The first principal
// ever created becomes the admin; everyone after that is a customer.
// This is an explicit rule of this operation, never a side effect of
// unrelated reads.
func (s *userService) EnsurePrincipal(email, name string) (*models.User, error) {
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "email is required"}
	}

	user, err := s.userRepo.GetByEmail(email)
	if err == nil {
		if name != "" && user.Name != name {
			user.Name = name
			if err := s.userRepo.Update(user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	count, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}

	role := string(models.RoleCustomer)
	if count == 0 {
		role = string(models.RoleAdmin)
	}

	user = &models.User{
		Email:    email,
		Name:     name,
		Role:     role,
		IsActive: true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("principal created")

	return user, nil
}

func (s *userService) GetUserByID(id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetAllUsers() ([]models.User, error) {
	return s.userRepo.GetAll()
}

// CreateAdmin seeds an administrator with a password hash. Used by the
// init script; regular principals come from the identity provider and
// carry no password.
func (s *userService) CreateAdmin(email, name, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		Role:         string(models.RoleAdmin),
		PasswordHash: string(hashed),
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}
