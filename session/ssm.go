package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

var _ Store = &SSMStore{}

// SSMClient is the subset of the SSM API the store needs.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error)
}

// SSMStore keeps the token in an SSM SecureString parameter, for kiosks that
// are provisioned centrally rather than logged in by hand.
type SSMStore struct {
	client        SSMClient
	parameterName string
}

func NewSSMStore(client SSMClient, parameterName string) *SSMStore {
	return &SSMStore{
		client:        client,
		parameterName: parameterName,
	}
}

func (s *SSMStore) GetToken(ctx context.Context) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.parameterName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", ErrNoToken
		}
		return "", NewFailedToReadError(fmt.Sprintf("Failed to get parameter %q", s.parameterName), err)
	}

	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", ErrNoToken
	}

	return aws.ToString(out.Parameter.Value), nil
}

func (s *SSMStore) SetToken(ctx context.Context, token string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.parameterName),
		Value:     aws.String(token),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to put parameter %q", s.parameterName), err)
	}

	return nil
}

func (s *SSMStore) ClearToken(ctx context.Context) error {
	_, err := s.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(s.parameterName),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return NewFailedToWriteError(fmt.Sprintf("Failed to delete parameter %q", s.parameterName), err)
	}

	return nil
}
