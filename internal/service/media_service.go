package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	cfg "github.com/postloom/postloom/configs"
)

type MediaService interface {
	PresignUpload(ctx context.Context, contentType string) (uploadURL, publicURL string, err error)
	Upload(ctx context.Context, file []byte) (string, error)
}

type mediaService struct {
	config cfg.Config
}

func NewMediaService(cfg cfg.Config) MediaService {
	return &mediaService{config: cfg}
}

var allowedUploadTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
}

var allowedContentTypes = map[string]struct{}{
	"video/mp4": {}, "video/quicktime": {}, "image/jpeg": {}, "image/png": {},
}

func (m *mediaService) r2Client() (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

// PresignUpload hands the browser a short-lived PUT URL so media never
// streams through this server.
func (m *mediaService) PresignUpload(ctx context.Context, contentType string) (string, string, error) {
	if _, ok := allowedContentTypes[contentType]; !ok {
		return "", "", fmt.Errorf("content type %s is not allowed", contentType)
	}

	client, err := m.r2Client()
	if err != nil {
		return "", "", err
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", "", err
	}

	presigner := s3.NewPresignClient(client)
	req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		slog.Info(err.Error())
		return "", "", err
	}

	return req.URL, fmt.Sprintf("%s/%s", m.config.R2.PublicBase, key), nil
}

// Upload is the direct path for small files: sniff the real type, refuse
// anything outside the allow list, store under a nanoid key.
func (m *mediaService) Upload(ctx context.Context, file []byte) (string, error) {
	fileType, err := filetype.Match(file)
	if err != nil || fileType == types.Unknown {
		return "", fmt.Errorf("unsupported file type: %w", err)
	}
	if _, ok := allowedUploadTypes[fileType.Extension]; !ok {
		return "", fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	client, err := m.r2Client()
	if err != nil {
		return "", err
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(fileType.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return fmt.Sprintf("%s/%s", m.config.R2.PublicBase, key), nil
}
