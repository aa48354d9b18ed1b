package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByGroupedRide(t *testing.T) {
	w := &recordingWriter{}
	pub := &KafkaPublisher{writer: w}
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, pub.Publish(context.Background(), domain.Event{
		Type:          domain.EventNotificationResolved,
		GroupedRideID: "group-1",
		RideRequestID: "req-1",
		ActorID:       "rider-1",
		Status:        "accepted",
		OccurredAt:    at,
	}))
	require.NoError(t, pub.Publish(context.Background(), domain.Event{
		Type:          domain.EventRequestSubmitted,
		RideRequestID: "req-2",
		OccurredAt:    at,
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "group-1", string(w.msgs[0].Key))
	assert.Equal(t, "req-2", string(w.msgs[1].Key))
	assert.Equal(t, at, w.msgs[0].Time)

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, domain.EventNotificationResolved, decoded.Type)
	assert.Equal(t, "accepted", decoded.Status)

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}
