package sqs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	receiveOut   *awssqs.ReceiveMessageOutput
	receiveErr   error
	deleteErr    error
	queueURL     string
	receiveInput *awssqs.ReceiveMessageInput
	deleted      []string
	sent         []*awssqs.SendMessageInput
	resolved     []string
}

func (f *fakeAPI) ReceiveMessage(_ context.Context, in *awssqs.ReceiveMessageInput, _ ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	f.receiveInput = in
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if f.receiveOut == nil {
		return &awssqs.ReceiveMessageOutput{}, nil
	}
	return f.receiveOut, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, in *awssqs.DeleteMessageInput, _ ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &awssqs.DeleteMessageOutput{}, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &awssqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeAPI) GetQueueUrl(_ context.Context, in *awssqs.GetQueueUrlInput, _ ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error) {
	f.resolved = append(f.resolved, aws.ToString(in.QueueName))
	if f.queueURL == "" {
		return nil, errors.New("queue does not exist")
	}
	return &awssqs.GetQueueUrlOutput{QueueUrl: aws.String(f.queueURL)}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClient_QueueURLResolution(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		api      *fakeAPI
		wantURL  string
		wantErr  error
		resolved int
	}{
		{
			name:    "explicit url",
			cfg:     &Config{QueueURL: "https://sqs.local/123/thumbs"},
			api:     &fakeAPI{},
			wantURL: "https://sqs.local/123/thumbs",
		},
		{
			name:     "resolved from name",
			cfg:      &Config{QueueName: "thumbs"},
			api:      &fakeAPI{queueURL: "https://sqs.local/123/thumbs"},
			wantURL:  "https://sqs.local/123/thumbs",
			resolved: 1,
		},
		{
			name:    "missing queue",
			cfg:     &Config{},
			api:     &fakeAPI{},
			wantErr: ErrNoQueue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newClient(context.Background(), tt.api, tt.cfg, testLogger())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, client.queueURL)
			assert.Len(t, tt.api.resolved, tt.resolved)
		})
	}
}

func TestNewClient_UnknownQueueName(t *testing.T) {
	_, err := newClient(context.Background(), &fakeAPI{}, &Config{QueueName: "nope"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestClient_Receive(t *testing.T) {
	api := &fakeAPI{
		receiveOut: &awssqs.ReceiveMessageOutput{
			Messages: []types.Message{{
				MessageId:     aws.String("id-1"),
				ReceiptHandle: aws.String("handle-1"),
				Body:          aws.String(`{"original":"images/photo.jpg","descriptions":[]}`),
			}},
		},
	}
	client, err := newClient(context.Background(), api, &Config{
		QueueURL:          "q",
		WaitTime:          time.Minute,
		VisibilityTimeout: 30 * time.Second,
	}, testLogger())
	require.NoError(t, err)

	msg, err := client.Receive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "handle-1", msg.Handle)
	assert.JSONEq(t, `{"original":"images/photo.jpg","descriptions":[]}`, string(msg.Body))

	require.NotNil(t, api.receiveInput)
	assert.Equal(t, int32(1), api.receiveInput.MaxNumberOfMessages)
	assert.Equal(t, int32(20), api.receiveInput.WaitTimeSeconds)
	assert.Equal(t, int32(30), api.receiveInput.VisibilityTimeout)
}

func TestClient_ReceiveEmpty(t *testing.T) {
	client, err := newClient(context.Background(), &fakeAPI{}, &Config{QueueURL: "q"}, testLogger())
	require.NoError(t, err)

	msg, err := client.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestClient_ReceiveError(t *testing.T) {
	api := &fakeAPI{receiveErr: errors.New("network down")}
	client, err := newClient(context.Background(), api, &Config{QueueURL: "q"}, testLogger())
	require.NoError(t, err)

	msg, err := client.Receive(context.Background())
	assert.Nil(t, msg)
	assert.ErrorContains(t, err, "network down")
}

func TestClient_Delete(t *testing.T) {
	api := &fakeAPI{}
	client, err := newClient(context.Background(), api, &Config{QueueURL: "q"}, testLogger())
	require.NoError(t, err)

	require.NoError(t, client.Delete(context.Background(), "handle-1"))
	assert.Equal(t, []string{"handle-1"}, api.deleted)

	api.deleteErr = errors.New("receipt handle expired")
	assert.ErrorContains(t, client.Delete(context.Background(), "handle-2"), "receipt handle expired")
}

func TestClient_Publish(t *testing.T) {
	api := &fakeAPI{}
	client, err := newClient(context.Background(), api, &Config{QueueURL: "q"}, testLogger())
	require.NoError(t, err)

	require.NoError(t, client.Publish(context.Background(), []byte(`{"original":"a.jpg"}`), "application/json"))
	require.Len(t, api.sent, 1)

	sent := api.sent[0]
	assert.Equal(t, "q", aws.ToString(sent.QueueUrl))
	assert.Equal(t, `{"original":"a.jpg"}`, aws.ToString(sent.MessageBody))
	assert.Equal(t, "application/json", aws.ToString(sent.MessageAttributes[contentTypeAttribute].StringValue))
}
