package clients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/awsconfig"
)

// SNSAPI is the subset of the SNS client used for alerts.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes the alert text to one topic.
type SNSNotifier struct {
	api      SNSAPI
	topicARN string
	logger   *zap.Logger
}

// NewSNSClient builds an SNS client from the default credential chain.
func NewSNSClient(ctx context.Context, opts awsconfig.Options) (*sns.Client, error) {
	cfg, err := awsconfig.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint := opts.BaseEndpoint(); endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	}), nil
}

// NewSNSNotifier returns notifier.
func NewSNSNotifier(api SNSAPI, topicARN string, logger *zap.Logger) *SNSNotifier {
	return &SNSNotifier{api: api, topicARN: topicARN, logger: logger}
}

// Notify publishes alert.Message with the device as a message attribute.
func (n *SNSNotifier) Notify(ctx context.Context, alert Alert) error {
	out, err := n.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(alert.Message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"deviceId": {DataType: aws.String("String"), StringValue: aws.String(alert.DeviceID)},
			"field":    {DataType: aws.String("String"), StringValue: aws.String(alert.Field)},
		},
	})
	if err != nil {
		n.logger.Warn("sns publish failed", zap.String("device_id", alert.DeviceID), zap.Error(err))
		return fmt.Errorf("sns: publish: %w", err)
	}
	n.logger.Info("alert published", zap.String("device_id", alert.DeviceID), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
