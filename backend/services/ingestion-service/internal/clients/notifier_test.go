package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

func sampleAlert() Alert {
	rec := telemetry.Record{DeviceID: "knuth", BatteryCharge: 21}
	return NewAlert("", rec, telemetry.Breach{Field: "batteryCharge", Value: 21, Limit: 20}, time.Unix(0, 0))
}

func TestNewAlertDefaultsMessage(t *testing.T) {
	alert := sampleAlert()
	assert.Equal(t, DefaultAlertMessage, alert.Message)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, "knuth", alert.DeviceID)
	assert.Equal(t, "batteryCharge", alert.Field)
}

func TestWebhookNotifierPostsAlert(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), sampleAlert()))
	assert.Equal(t, "knuth", got.DeviceID)
	assert.Equal(t, DefaultAlertMessage, got.Message)
}

func TestWebhookNotifierReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop()).Notify(context.Background(), sampleAlert())
	assert.Error(t, err)
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSNSNotifierPublishesToTopic(t *testing.T) {
	api := &fakeSNS{}
	n := NewSNSNotifier(api, "arn:aws:sns:us-east-1:000000000000:alerts", zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), sampleAlert()))
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:alerts", aws.ToString(api.input.TopicArn))
	assert.Equal(t, DefaultAlertMessage, aws.ToString(api.input.Message))
	assert.Equal(t, "knuth", aws.ToString(api.input.MessageAttributes["deviceId"].StringValue))
}

func TestSNSNotifierWrapsError(t *testing.T) {
	api := &fakeSNS{err: errors.New("denied")}

	err := NewSNSNotifier(api, "arn", zap.NewNop()).Notify(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, api.err)
}
