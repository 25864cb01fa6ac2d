package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
	"github.com/vytor/bizquest/internal/storage"
)

var avatarExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ProfileService handles profile edits, password changes and avatars
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next, confirm string) error
	UploadAvatar(ctx context.Context, userID string, r io.Reader) (*models.User, error)
	RemoveAvatar(ctx context.Context, userID string) (*models.User, error)
}

type profileService struct {
	userRepo repository.UserRepository
	store    storage.Storage
	maxBytes int64
	cost     int
}

// NewProfileService creates a new ProfileService
func NewProfileService(userRepo repository.UserRepository, store storage.Storage, maxAvatarBytes int64) ProfileService {
	return &profileService{userRepo: userRepo, store: store, maxBytes: maxAvatarBytes, cost: 10}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting profile: user_id=%s", userID)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Error("failed to get profile: %v", err)
		return nil, errors.NewStoreError("Failed to load profile", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", userID)
	}
	return user, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating profile: user_id=%s", userID)

	if update.FullName != nil && strings.TrimSpace(*update.FullName) == "" {
		return nil, errors.NewValidationError("full_name", "cannot be empty")
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, update)
	if err != nil {
		log.Error("failed to update profile: %v", err)
		return nil, errors.NewStoreError("Failed to update profile", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", userID)
	}
	return user, nil
}

func (s *profileService) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	log := logger.FromContext(ctx)
	log.Debug("changing password: user_id=%s", userID)

	if next != confirm {
		return errors.NewBadRequestError("New passwords do not match")
	}
	if len(next) < MinPasswordLength {
		return errors.NewValidationError("new_password", "must be at least 8 characters")
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	// Accounts created through OAuth have no password yet and may set one.
	if user.PasswordHash != nil && !checkPassword(user.PasswordHash, current) {
		return errors.NewUnauthorizedError("Current password is incorrect")
	}

	hash, err := hashPassword(next, s.cost)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		log.Error("failed to update password: %v", err)
		return errors.NewStoreError("Failed to update password", err)
	}
	log.Info("password changed: user_id=%s", userID)
	return nil
}

func randomSuffix() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *profileService) UploadAvatar(ctx context.Context, userID string, r io.Reader) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("uploading avatar: user_id=%s", userID)

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, errors.NewBadRequestError("Failed to read upload")
	}
	if len(data) == 0 {
		return nil, errors.NewValidationError("avatar", "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, errors.NewValidationError("avatar", fmt.Sprintf("must be at most %d bytes", s.maxBytes))
	}
	contentType := http.DetectContentType(data)
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, errors.NewValidationError("avatar", "must be a PNG, JPEG, GIF or WebP image")
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s-%s.%s", userID, randomSuffix(), ext)
	url, err := s.store.Put(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		log.Error("failed to store avatar: %v", err)
		return nil, errors.NewStoreError("Failed to upload avatar", err)
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, &url); err != nil {
		log.Error("failed to save avatar url: %v", err)
		_ = s.store.Delete(ctx, key)
		return nil, errors.NewStoreError("Failed to update avatar", err)
	}

	s.deleteStored(ctx, user.AvatarURL)
	user.AvatarURL = &url
	return user, nil
}

func (s *profileService) RemoveAvatar(ctx context.Context, userID string) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("removing avatar: user_id=%s", userID)

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, nil); err != nil {
		log.Error("failed to clear avatar: %v", err)
		return nil, errors.NewStoreError("Failed to remove avatar", err)
	}
	s.deleteStored(ctx, user.AvatarURL)
	user.AvatarURL = nil
	return user, nil
}

// deleteStored removes an old avatar object when it lives in our storage.
func (s *profileService) deleteStored(ctx context.Context, url *string) {
	if url == nil {
		return
	}
	key, ok := s.store.KeyFromURL(*url)
	if !ok {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).Warn("failed to delete old avatar %s: %v", key, err)
	}
}
