package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
)

// Publisher is the narrow slice of the Late API the publish worker needs.
type Publisher interface {
	Publish(ctx context.Context, profileID string, post *models.Post) (*transfer.LatePublishResponse, error)
}

type LateService interface {
	Publisher
	ConnectURL(platform, state string) string
	FetchProfile(ctx context.Context, profileID string) (*transfer.LateProfile, error)
	RevokeProfile(ctx context.Context, profileID, accountToken string) error
}

type lateService struct {
	cfg    config.Config
	client *http.Client
}

func NewLateService(cfg config.Config) LateService {
	return &lateService{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *lateService) Publish(ctx context.Context, profileID string, post *models.Post) (*transfer.LatePublishResponse, error) {
	body := transfer.LatePublishRequest{
		ProfileID: profileID,
		Platform:  post.Platform,
		Content:   post.Content,
		MediaURLs: post.MediaURLs,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.LateAPIBase+"/posts", bytes.NewReader(payload))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.LateAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to reach publish API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeLateError(resp)
	}

	var result transfer.LatePublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode publish response: %w", err)
	}

	return &result, nil
}

// ConnectURL builds the hosted authorization URL a user is redirected to
// when connecting a new platform account.
func (s *lateService) ConnectURL(platform, state string) string {
	params := url.Values{}
	params.Add("platform", platform)
	params.Add("state", state)
	return fmt.Sprintf("%s/connect?%s", s.cfg.LateAPIBase, params.Encode())
}

func (s *lateService) FetchProfile(ctx context.Context, profileID string) (*transfer.LateProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.LateAPIBase+"/profiles/"+url.PathEscape(profileID), nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.LateAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeLateError(resp)
	}

	var profile transfer.LateProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	return &profile, nil
}

// RevokeProfile tears down the upstream connection. The account's own
// token rides along so the provider can revoke its grant, not just forget
// the profile.
func (s *lateService) RevokeProfile(ctx context.Context, profileID, accountToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.cfg.LateAPIBase+"/profiles/"+url.PathEscape(profileID), nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.LateAPIKey)
	if accountToken != "" {
		req.Header.Set("X-Account-Token", accountToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to revoke profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeLateError(resp)
	}

	return nil
}

func decodeLateError(resp *http.Response) error {
	var apiErr transfer.LateErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return fmt.Errorf("publish API returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("publish API error: %s", apiErr.Error)
}
