// Package secrets resolves runtime credentials from AWS Secrets Manager.
//
// Database credentials are stored as a JSON object with host, port, dbname,
// username and password fields; API keys as an object with a single api_key
// field. Direct environment variables always take precedence over ARN
// resolution (see config.Resolve).
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Manager reads secrets by ARN.
type Manager struct {
	client *secretsmanager.Client
}

// NewManager creates a Manager using the default AWS credential chain.
func NewManager(ctx context.Context) (*Manager, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}
	return &Manager{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (m *Manager) fetch(ctx context.Context, arn string) ([]byte, error) {
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: get secret value: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secrets: secret %s has no string payload", arn)
	}
	return []byte(*out.SecretString), nil
}

// DatabaseURL resolves a database credential secret into a postgres URL.
func (m *Manager) DatabaseURL(ctx context.Context, arn string) (string, error) {
	raw, err := m.fetch(ctx, arn)
	if err != nil {
		return "", err
	}
	return databaseURLFromSecret(raw)
}

// APIKey resolves an API key secret.
func (m *Manager) APIKey(ctx context.Context, arn string) (string, error) {
	raw, err := m.fetch(ctx, arn)
	if err != nil {
		return "", err
	}
	var payload struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("secrets: parse api key secret: %w", err)
	}
	if payload.APIKey == "" {
		return "", fmt.Errorf("secrets: api key secret missing api_key field")
	}
	return payload.APIKey, nil
}

// databaseURLFromSecret builds a postgres URL from a credential secret.
// Port and dbname are optional and default to 5432 and ai_research.
func databaseURLFromSecret(raw []byte) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("secrets: parse db secret: %w", err)
	}

	host, _ := payload["host"].(string)
	username, _ := payload["username"].(string)
	password, _ := payload["password"].(string)
	if host == "" || username == "" || password == "" {
		return "", fmt.Errorf("secrets: db secret missing host, username or password")
	}

	port := 5432
	switch v := payload["port"].(type) {
	case float64:
		port = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			port = n
		}
	}

	dbname := "ai_research"
	if v, ok := payload["dbname"].(string); ok && v != "" {
		dbname = v
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(username, password),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + dbname,
	}
	return u.String(), nil
}
