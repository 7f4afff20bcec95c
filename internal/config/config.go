// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event queue backends.
const (
	QueueBackendDynamoDB = "dynamodb"
	QueueBackendMemory   = "memory"
)

// DefaultEventTTL is how long an undrained event mailbox survives.
const DefaultEventTTL = 10 * time.Minute

// Config holds all runtime configuration.
type Config struct {
	TableName        string
	DynamoDBEndpoint string
	AWSRegion        string

	MediaBucket         string
	MediaBaseURL        string
	MediaDeleteQueueURL string

	CognitoUserPoolID   string
	CognitoClientID     string
	CognitoClientSecret string

	UpstreamAPIURL     string
	ServerAddress      string
	CORSAllowedOrigins []string

	EventQueueBackend string
	EventTTL          time.Duration

	LambdaFunctionName string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		TableName:           getEnv("TABLE_NAME", ""),
		DynamoDBEndpoint:    getEnv("DYNAMODB_ENDPOINT", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		MediaBucket:         getEnv("MEDIA_BUCKET", ""),
		MediaBaseURL:        strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/"),
		MediaDeleteQueueURL: getEnv("MEDIA_DELETE_QUEUE_URL", ""),
		CognitoUserPoolID:   getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:     getEnv("COGNITO_CLIENT_ID", ""),
		CognitoClientSecret: getEnv("COGNITO_CLIENT_SECRET", ""),
		UpstreamAPIURL:      strings.TrimRight(getEnv("UPSTREAM_API_URL", ""), "/"),
		ServerAddress:       getEnv("SERVER_ADDRESS", ":8080"),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		EventQueueBackend:   strings.ToLower(getEnv("EVENT_QUEUE_BACKEND", QueueBackendDynamoDB)),
		EventTTL:            time.Duration(getEnvInt("EVENT_TTL_SECONDS", int(DefaultEventTTL/time.Second))) * time.Second,
		LambdaFunctionName:  getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or invalid required value.
func (c *Config) Validate() error {
	var errs []error
	if c.TableName == "" {
		errs = append(errs, errors.New("TABLE_NAME is required"))
	}
	if c.CognitoUserPoolID == "" {
		errs = append(errs, errors.New("COGNITO_USER_POOL_ID is required"))
	}
	if c.CognitoClientID == "" {
		errs = append(errs, errors.New("COGNITO_CLIENT_ID is required"))
	}
	switch c.EventQueueBackend {
	case QueueBackendDynamoDB, QueueBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("EVENT_QUEUE_BACKEND %q must be %q or %q", c.EventQueueBackend, QueueBackendDynamoDB, QueueBackendMemory))
	}
	if c.EventTTL <= 0 {
		errs = append(errs, errors.New("EVENT_TTL_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

// IsLambda reports whether the process runs inside AWS Lambda.
func (c *Config) IsLambda() bool {
	return c.LambdaFunctionName != ""
}

// MediaEnabled reports whether uploads can be presigned.
func (c *Config) MediaEnabled() bool {
	return c.MediaBucket != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
