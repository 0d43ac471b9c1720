package service

import (
	"context"
	"fmt"
	"log/slog"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/rules"
	"github.com/postloom/postloom/pkg/utils"
)

type PlatformService interface {
	ConnectURL(userID int64, platform string) (string, error)
	ConnectCallback(ctx context.Context, userID int64, platform, profileID string) error
	List(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error)
	Disconnect(ctx context.Context, userID, id int64) error
}

type platformService struct {
	cfg  config.Config
	cp   repository.PlatformRepository
	late LateService
}

func NewPlatformService(cfg config.Config, cp repository.PlatformRepository, late LateService) PlatformService {
	return &platformService{
		cfg:  cfg,
		cp:   cp,
		late: late,
	}
}

func (s *platformService) ConnectURL(userID int64, platform string) (string, error) {
	if _, known := rules.ForPlatform(platform); !known {
		return "", fmt.Errorf("%w: unknown platform %q", ErrValidation, platform)
	}
	state := fmt.Sprintf("%d", userID)
	return s.late.ConnectURL(platform, state), nil
}

// ConnectCallback runs after the publisher's hosted authorization flow
// hands the browser back. The profile is fetched server-side so nothing in
// the callback query string is trusted beyond the profile id.
func (s *platformService) ConnectCallback(ctx context.Context, userID int64, platform, profileID string) error {
	if profileID == "" {
		return fmt.Errorf("%w: profile id is empty", ErrValidation)
	}

	profile, err := s.late.FetchProfile(ctx, profileID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedToken, err := utils.EncryptToken(profile.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	cp := &models.ConnectedPlatform{
		UserID:         userID,
		Platform:       platform,
		ProfileID:      profile.ProfileID,
		AccountName:    profile.Name,
		AccountHandle:  profile.Username,
		ProfilePicture: profile.ProfilePicture,
		AccessToken:    encryptedToken,
	}

	if _, err := s.cp.Upsert(ctx, cp); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return nil
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error) {
	platforms, err := s.cp.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return platforms, nil
}

// Disconnect revokes upstream best-effort, then deletes the row. A failed
// revoke is logged; keeping the local row would strand the user with an
// account they cannot remove.
func (s *platformService) Disconnect(ctx context.Context, userID, id int64) error {
	account, err := s.cp.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if account == nil || account.UserID != userID {
		return ErrNotFound
	}

	token, err := utils.DecryptToken(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Error("stored token could not be decrypted, revoking without it",
			"profile_id", account.ProfileID, "error", err.Error())
		token = ""
	}
	if err := s.late.RevokeProfile(ctx, account.ProfileID, token); err != nil {
		slog.Error("profile revoke failed, removing local record anyway",
			"profile_id", account.ProfileID, "error", err.Error())
	}

	if err := s.cp.Remove(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
