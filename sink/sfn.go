package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
)

// SfnClient is the subset of the Step Functions API used to complete tasks.
type SfnClient interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
	SendTaskHeartbeat(ctx context.Context, params *sfn.SendTaskHeartbeatInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskHeartbeatOutput, error)
}

var _ Sink = new(sfnSink)

type sfnSink struct {
	client SfnClient
}

func NewSfnSink(client SfnClient) *sfnSink {
	return &sfnSink{client: client}
}

func NewSfnSinkFromConfig(ctx context.Context, region string) (*sfnSink, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSfnSink(sfn.NewFromConfig(awsCfg)), nil
}

func (s *sfnSink) SendSuccess(ctx context.Context, token string, output string) error {
	_, err := s.client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(token),
		Output:    aws.String(output),
	})
	return classifySfnError(err)
}

func (s *sfnSink) SendFailure(ctx context.Context, token string, errorCode string, cause string) error {
	input := &sfn.SendTaskFailureInput{TaskToken: aws.String(token)}
	if errorCode != "" {
		input.Error = aws.String(errorCode)
	}
	if cause != "" {
		input.Cause = aws.String(cause)
	}
	_, err := s.client.SendTaskFailure(ctx, input)
	return classifySfnError(err)
}

func (s *sfnSink) SendHeartbeat(ctx context.Context, token string) error {
	_, err := s.client.SendTaskHeartbeat(ctx, &sfn.SendTaskHeartbeatInput{
		TaskToken: aws.String(token),
	})
	return classifySfnError(err)
}

func classifySfnError(err error) error {
	if err == nil {
		return nil
	}
	var (
		invalidToken  *types.InvalidToken
		invalidOutput *types.InvalidOutput
		doesNotExist  *types.TaskDoesNotExist
		timedOut      *types.TaskTimedOut
	)
	switch {
	case errors.As(err, &invalidToken):
		return fmt.Errorf("%w: %s", ErrInvalidToken, invalidToken.ErrorMessage())
	case errors.As(err, &invalidOutput):
		return fmt.Errorf("%w: %s", ErrInvalidOutput, invalidOutput.ErrorMessage())
	case errors.As(err, &doesNotExist):
		return fmt.Errorf("%w: %s", ErrTaskDoesNotExist, doesNotExist.ErrorMessage())
	case errors.As(err, &timedOut):
		return fmt.Errorf("%w: %s", ErrTaskTimedOut, timedOut.ErrorMessage())
	}
	return err
}
