package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/storage"
	"github.com/vytor/bizquest/internal/testutil/mocks"
)

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func newProfileFixture(t *testing.T) (*mocks.MockUserRepository, *storage.Local, *profileService) {
	users := new(mocks.MockUserRepository)
	store, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	svc := NewProfileService(users, store, 1024).(*profileService)
	svc.cost = bcrypt.MinCost
	return users, store, svc
}

func TestUpdateProfile(t *testing.T) {
	users, _, svc := newProfileFixture(t)
	name := "Ada"
	update := models.ProfileUpdate{FullName: &name}
	users.On("UpdateProfile", mock.Anything, "u1", update).Return(&models.User{ID: "u1", FullName: "Ada"}, nil)

	user, err := svc.UpdateProfile(context.Background(), "u1", update)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FullName)

	blank := " "
	_, err = svc.UpdateProfile(context.Background(), "u1", models.ProfileUpdate{FullName: &blank})
	assert.Equal(t, 400, errors.StatusOf(err))
}

func TestChangePassword(t *testing.T) {
	users, _, svc := newProfileFixture(t)
	hash, err := hashPassword("old-password", bcrypt.MinCost)
	require.NoError(t, err)
	users.On("GetByID", mock.Anything, "u1").Return(&models.User{ID: "u1", PasswordHash: &hash}, nil)
	users.On("UpdatePassword", mock.Anything, "u1", mock.AnythingOfType("string")).Return(nil)

	err = svc.ChangePassword(context.Background(), "u1", "old-password", "new-password", "other-password")
	assert.Equal(t, 400, errors.StatusOf(err))

	err = svc.ChangePassword(context.Background(), "u1", "wrong", "new-password", "new-password")
	assert.Equal(t, 401, errors.StatusOf(err))

	err = svc.ChangePassword(context.Background(), "u1", "old-password", "new-password", "new-password")
	require.NoError(t, err)
	users.AssertNumberOfCalls(t, "UpdatePassword", 1)
}

func TestChangePasswordWithoutExistingPassword(t *testing.T) {
	users, _, svc := newProfileFixture(t)
	users.On("GetByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil)
	users.On("UpdatePassword", mock.Anything, "u1", mock.AnythingOfType("string")).Return(nil)

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", "", "new-password", "new-password"))
}

func TestUploadAvatarReplacesOld(t *testing.T) {
	users, store, svc := newProfileFixture(t)
	ctx := context.Background()

	oldURL, err := store.Put(ctx, "avatars/u1-old.png", "image/png", bytes.NewReader(tinyPNG))
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, "u1").Return(&models.User{ID: "u1", AvatarURL: &oldURL}, nil)
	users.On("UpdateAvatar", mock.Anything, "u1", mock.AnythingOfType("*string")).Return(nil)

	user, err := svc.UploadAvatar(ctx, "u1", bytes.NewReader(tinyPNG))
	require.NoError(t, err)
	require.NotNil(t, user.AvatarURL)
	assert.True(t, strings.HasPrefix(*user.AvatarURL, "/uploads/avatars/u1-"))
	assert.True(t, strings.HasSuffix(*user.AvatarURL, ".png"))

	_, statErr := os.Stat(filepath.Join(store.Dir, "avatars", "u1-old.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadAvatarRejectsBadInput(t *testing.T) {
	_, _, svc := newProfileFixture(t)
	ctx := context.Background()

	_, err := svc.UploadAvatar(ctx, "u1", strings.NewReader("just some text"))
	assert.Equal(t, 400, errors.StatusOf(err))

	_, err = svc.UploadAvatar(ctx, "u1", bytes.NewReader(make([]byte, 2048)))
	assert.Equal(t, 400, errors.StatusOf(err))

	_, err = svc.UploadAvatar(ctx, "u1", bytes.NewReader(nil))
	assert.Equal(t, 400, errors.StatusOf(err))
}

func TestRemoveAvatarKeepsExternalURL(t *testing.T) {
	users, _, svc := newProfileFixture(t)
	external := "https://avatars.example.com/ada.png"
	users.On("GetByID", mock.Anything, "u1").Return(&models.User{ID: "u1", AvatarURL: &external}, nil)
	users.On("UpdateAvatar", mock.Anything, "u1", (*string)(nil)).Return(nil)

	user, err := svc.RemoveAvatar(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, user.AvatarURL)
	users.AssertExpectations(t)
}
