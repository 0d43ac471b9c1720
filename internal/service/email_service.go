package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/postloom/postloom/configs"
)

// Mailer sends a template email through the transactional email provider.
type Mailer interface {
	SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error
}

type emailService struct {
	cfg    config.Config
	client *http.Client
}

func NewEmailService(cfg config.Config) Mailer {
	return &emailService{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type emailRequest struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

func (s *emailService) SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error {
	body := emailRequest{
		To:       to,
		From:     s.cfg.EmailFrom,
		Template: templateID,
		Data:     data,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.EmailAPIBase+"/send", bytes.NewReader(payload))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.EmailAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to reach email API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}

	return nil
}
