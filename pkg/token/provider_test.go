package token

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAuthorizationAPI is a mock implementation of AuthorizationAPI for testing.
type MockAuthorizationAPI struct {
	mock.Mock
}

func (m *MockAuthorizationAPI) GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ecr.GetAuthorizationTokenOutput)
	return out, args.Error(1)
}

func authOutput(tokens ...string) *ecr.GetAuthorizationTokenOutput {
	out := &ecr.GetAuthorizationTokenOutput{}
	for _, tok := range tokens {
		out.AuthorizationData = append(out.AuthorizationData, ecrtypes.AuthorizationData{
			AuthorizationToken: aws.String(tok),
		})
	}
	return out
}

func TestECRProvider_FetchToken(t *testing.T) {
	tests := []struct {
		name    string
		output  *ecr.GetAuthorizationTokenOutput
		callErr error
		want    string
		wantErr bool
	}{
		{
			name:   "decodes user password pair",
			output: authOutput(base64.StdEncoding.EncodeToString([]byte("AWS:tok123"))),
			want:   "tok123",
		},
		{
			name:   "password containing colons survives the split",
			output: authOutput(base64.StdEncoding.EncodeToString([]byte("AWS:to:k1:23"))),
			want:   "to:k1:23",
		},
		{
			name:   "zero authorization entries yield empty token",
			output: &ecr.GetAuthorizationTokenOutput{},
			want:   "",
		},
		{
			name:    "call failure",
			callErr: errors.New("provider unreachable"),
			wantErr: true,
		},
		{
			name: "nil token in authorization data",
			output: &ecr.GetAuthorizationTokenOutput{
				AuthorizationData: []ecrtypes.AuthorizationData{{}},
			},
			wantErr: true,
		},
		{
			name:    "token is not base64",
			output:  authOutput("%%%not-base64%%%"),
			wantErr: true,
		},
		{
			name:    "token without separator",
			output:  authOutput(base64.StdEncoding.EncodeToString([]byte("just-a-password"))),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := new(MockAuthorizationAPI)
			mockAPI.On("GetAuthorizationToken", mock.Anything, mock.Anything).Return(tt.output, tt.callErr)

			provider := NewECRProviderWithClient(mockAPI)
			got, err := provider.FetchToken(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				var fetchErr *TokenFetchError
				assert.ErrorAs(t, err, &fetchErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			mockAPI.AssertExpectations(t)
		})
	}
}

func TestTokenFetchError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TokenFetchError{Err: cause}

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}
