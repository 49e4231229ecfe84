// Package token obtains ECR authorization tokens and caches them for reuse.
package token

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// TokenFetchError wraps a failure to obtain an authorization token, whether
// the provider call itself failed or the response carried no usable
// authorization data.
type TokenFetchError struct {
	Err error
}

func (e *TokenFetchError) Error() string {
	return "failed to fetch authorization token: " + e.Err.Error()
}

func (e *TokenFetchError) Unwrap() error {
	return e.Err
}

// AuthorizationAPI is the subset of the ECR client used by the provider.
// This interface allows for testing with mocks.
type AuthorizationAPI interface {
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// ECRProvider fetches authorization tokens from AWS ECR. Cloud credentials
// stay ambient: the default AWS configuration chain (environment, shared
// config, instance role) supplies them, this code never reads them.
type ECRProvider struct {
	client AuthorizationAPI
}

// NewECRProvider creates an ECRProvider from the default AWS configuration chain.
func NewECRProvider(ctx context.Context) (*ECRProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &ECRProvider{client: ecr.NewFromConfig(cfg)}, nil
}

// NewECRProviderWithClient creates an ECRProvider backed by the given client.
func NewECRProviderWithClient(client AuthorizationAPI) *ECRProvider {
	return &ECRProvider{client: client}
}

// FetchToken requests a fresh authorization token and returns the password
// half of the decoded user:password pair; the user half is always the
// literal "AWS". A response with zero authorization entries yields an empty
// token rather than an error, so callers go on to write an empty
// credentials document; the condition is logged because it wipes previously
// distributed credentials on the next write.
func (p *ECRProvider) FetchToken(ctx context.Context) (string, error) {
	// ecr.GetAuthorizationTokenInput only has the deprecated RegistryIds
	// field, hence nil input.
	out, err := p.client.GetAuthorizationToken(ctx, nil)
	if err != nil {
		return "", &TokenFetchError{Err: err}
	}

	if len(out.AuthorizationData) == 0 {
		log.FromContext(ctx).Info("authorization response contained zero entries, credentials document will be empty")
		return "", nil
	}

	authData := out.AuthorizationData[0]
	if authData.AuthorizationToken == nil {
		return "", &TokenFetchError{Err: errors.New("no authorization token in response")}
	}

	decoded, err := base64.StdEncoding.DecodeString(*authData.AuthorizationToken)
	if err != nil {
		return "", &TokenFetchError{Err: fmt.Errorf("failed to decode authorization token: %w", err)}
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", &TokenFetchError{Err: errors.New("authorization token is not a user:password pair")}
	}

	return parts[1], nil
}
