package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

type publishCall struct {
	subject string
	data    []byte
	opts    int
}

type fakeJetStream struct {
	calls []publishCall
	err   error
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.calls = append(f.calls, publishCall{subject: subject, data: data, opts: len(opts)})
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.calls))}, nil
}

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "chat.abc.message.appended", EventSubject("abc", model.EventMessageAppended))
	assert.Equal(t, "chat.all.conversations.cleared", EventSubject("", model.EventConversationsClear))
	assert.Equal(t, "chat.abc.>", ConversationFilter("abc"))
}

func TestStreamConfigCoversSubjects(t *testing.T) {
	cfg := StreamConfig()
	assert.Equal(t, StreamName, cfg.Name)
	assert.Equal(t, []string{"chat.>"}, cfg.Subjects)
}

func TestPublish(t *testing.T) {
	js := &fakeJetStream{}
	pub := NewEventPublisher(js)

	event := &model.ConversationEvent{
		ID:             "evt-1",
		ConversationID: "conv-1",
		Type:           model.EventMessageAppended,
		MessageID:      "msg-1",
		Role:           model.RoleUser,
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), event))

	require.Len(t, js.calls, 1)
	assert.Equal(t, "chat.conv-1.message.appended", js.calls[0].subject)
	assert.Equal(t, 1, js.calls[0].opts)

	var decoded model.ConversationEvent
	require.NoError(t, json.Unmarshal(js.calls[0].data, &decoded))
	assert.Equal(t, *event, decoded)
}

func TestPublishError(t *testing.T) {
	pub := NewEventPublisher(&fakeJetStream{err: errors.New("no responders")})

	err := pub.Publish(context.Background(), &model.ConversationEvent{ID: "e", Type: model.EventProviderError, ConversationID: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.c.provider.error")
}
