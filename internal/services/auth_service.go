package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
)

const MinPasswordLength = 8

// AuthService handles account creation and credential checks
type AuthService interface {
	SignUp(ctx context.Context, email, password, fullName string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	// EnsureOAuthUser returns the user for an external identity, creating or
	// linking the account on first sight.
	EnsureOAuthUser(ctx context.Context, identity models.ExternalIdentity) (*models.User, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	cost     int
	now      func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository) AuthService {
	return &authService{userRepo: userRepo, cost: bcrypt.DefaultCost, now: time.Now}
}

// DisplayName picks the best available name for a new user.
func DisplayName(id models.ExternalIdentity) string {
	for _, v := range []string{id.FullName, id.Name, id.PreferredUsername} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	if local, _, _ := strings.Cut(strings.TrimSpace(id.Email), "@"); local != "" {
		return local
	}
	return "User"
}

func hashPassword(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkPassword(hash *string, password string) bool {
	if hash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}

func (s *authService) SignUp(ctx context.Context, email, password, fullName string) (*models.User, error) {
	log := logger.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	log.Debug("signing up: email=%s", email)

	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("email", "must be a valid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, errors.NewValidationError("password", "must be at least 8 characters")
	}

	hash, err := hashPassword(password, s.cost)
	if err != nil {
		log.Error("failed to hash password: %v", err)
		return nil, errors.NewInternalError(err)
	}

	name := strings.TrimSpace(fullName)
	if name == "" {
		name = DisplayName(models.ExternalIdentity{Email: email})
	}
	user, err := s.userRepo.Create(ctx, models.User{Email: email, FullName: name, PasswordHash: &hash})
	if err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			return nil, errors.NewConflictError("An account with this email already exists")
		}
		log.Error("failed to create user: %v", err)
		return nil, errors.NewStoreError("Failed to create account", err)
	}
	log.Info("user signed up: id=%s", user.ID)
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("logging in: email=%s", email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Error("failed to load user: %v", err)
		return nil, errors.NewStoreError("Failed to sign in", err)
	}
	if user == nil || !checkPassword(user.PasswordHash, password) {
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("failed to record last login: %v", err)
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (s *authService) EnsureOAuthUser(ctx context.Context, identity models.ExternalIdentity) (*models.User, error) {
	log := logger.FromContext(ctx).WithField("subject", identity.Subject)

	if identity.Subject == "" {
		return nil, errors.NewBadRequestError("identity has no subject")
	}

	user, err := s.userRepo.GetByOAuthSubject(ctx, identity.Subject)
	if err != nil {
		return nil, errors.NewStoreError("Failed to load user", err)
	}

	if user == nil && identity.Email != "" {
		user, err = s.userRepo.GetByEmail(ctx, identity.Email)
		if err != nil {
			return nil, errors.NewStoreError("Failed to load user", err)
		}
		if user != nil {
			if !identity.EmailVerified || user.PasswordHash != nil || user.OAuthSubject != nil {
				log.Warn("refusing to link oauth identity to existing user %s: email_verified=%t", user.ID, identity.EmailVerified)
				return nil, errors.NewConflictError("An account with this email already exists; sign in with your password")
			}
			log.Info("linking oauth identity to existing user %s", user.ID)
			if err := s.userRepo.LinkOAuthSubject(ctx, user.ID, identity.Subject); err != nil {
				return nil, errors.NewStoreError("Failed to link account", err)
			}
		}
	}

	if user == nil {
		if identity.Email == "" {
			return nil, errors.NewBadRequestError("identity has no email")
		}
		subject := identity.Subject
		var avatar *string
		if identity.AvatarURL != "" {
			avatar = &identity.AvatarURL
		}
		user, err = s.userRepo.Create(ctx, models.User{
			Email:        identity.Email,
			FullName:     DisplayName(identity),
			AvatarURL:    avatar,
			OAuthSubject: &subject,
		})
		if err != nil {
			log.Error("failed to create user profile: %v", err)
			return nil, errors.NewStoreError("Failed to create profile", err)
		}
		log.Info("created user from oauth identity: id=%s", user.ID)
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("failed to record last login: %v", err)
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (s *authService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.NewUnauthorizedError("")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load user: %v", err)
		return nil, errors.NewStoreError("Failed to load user", err)
	}
	if user == nil {
		return nil, errors.NewUnauthorizedError("")
	}
	return user, nil
}
