package salesforce

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// SecretsAPI is the slice of the Secrets Manager client the loader uses.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Secret is the JSON document stored for an org.
type Secret struct {
	AccessToken  string `json:"access_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	InstanceURL  string `json:"instance_url"`
	TokenURL     string `json:"token_url"`
}

// SecretLoader reads org credentials from AWS Secrets Manager.
type SecretLoader struct {
	api SecretsAPI
}

// NewSecretLoader creates a loader over api.
func NewSecretLoader(api SecretsAPI) *SecretLoader {
	return &SecretLoader{api: api}
}

// SecretName expands the {orgId} placeholder in a secret id template.
func SecretName(template, orgID string) string {
	if orgID == "" {
		orgID = "default"
	}
	return strings.ReplaceAll(template, "{orgId}", orgID)
}

// Load fetches and decodes secretID. Secrets are read on every call.
func (l *SecretLoader) Load(ctx context.Context, secretID string) (*Secret, error) {
	out, err := l.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, &domain.AuthError{Reason: "failed to read secret " + secretID, Err: err}
	}

	var secret Secret
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &secret); err != nil {
		return nil, &domain.AuthError{Reason: "secret " + secretID + " is not a JSON object", Err: err}
	}
	return &secret, nil
}
