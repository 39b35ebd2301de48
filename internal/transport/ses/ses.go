// Package ses submits composed messages through the AWS SES v2 API.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the subset of the SES v2 client used here.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Sender struct {
	client SendEmailAPI
}

// New loads the default AWS configuration for the region. Static credentials
// are used only when both halves are set.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

func NewWithClient(client SendEmailAPI) *Sender {
	return &Sender{client: client}
}

func (s *Sender) Name() string {
	return "ses"
}

// Open is a no-op; the API client is stateless.
func (s *Sender) Open(_ context.Context) error {
	return nil
}

// Send submits msg unchanged as raw content. A failed call is returned
// without retrying so the message stays uncommitted for the next run.
func (s *Sender) Send(ctx context.Context, from, to string, msg []byte) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	return nil
}

func (s *Sender) Close() error {
	return nil
}
