package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicBase string
}

type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	LateAPIBase        string
	LateAPIKey         string
	EmailAPIBase       string
	EmailAPIKey        string
	EmailFrom          string
	FailureTemplateID  string
	PostgresURI        string
	RedisURI           string
	FrontendURL        string
	R2                 R2
	SecretKey          string
	CookieName         string
	PublishMaxRetry    int
	NotifyMaxRetry     int
}

func LoadConfig() *Config {
	return &Config{
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		LateAPIBase:        getEnv("LATE_API_BASE", "https://getlate.dev/api/v1"),
		LateAPIKey:         getEnv("LATE_API_KEY", ""),
		EmailAPIBase:       getEnv("EMAIL_API_BASE", "https://api.useplunk.com/v1"),
		EmailAPIKey:        getEnv("EMAIL_API_KEY", ""),
		EmailFrom:          getEnv("EMAIL_FROM", "notifications@postloom.app"),
		FailureTemplateID:  getEnv("FAILURE_TEMPLATE_ID", "post-failed"),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", "127.0.0.1:6379"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicBase: getEnv("R2_PUBLIC_BASE", ""),
		},
		SecretKey:       getEnv("SECRET_KEY", ""),
		CookieName:      getEnv("COOKIE_NAME", "postloom_session"),
		PublishMaxRetry: getEnvInt("PUBLISH_MAX_RETRY", 3),
		NotifyMaxRetry:  getEnvInt("NOTIFY_MAX_RETRY", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
