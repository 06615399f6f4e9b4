package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaProducerWithWriter(w, nil)

	require.NoError(t, p.Publish(context.Background(), "a@b.com", map[string]string{"template": "reset"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "a@b.com", string(w.msgs[0].Key))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, "reset", body["template"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaProducer_Errors(t *testing.T) {
	p := NewKafkaProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, nil)
	assert.ErrorContains(t, p.Publish(context.Background(), "k", "v"), "broker down")

	p = NewKafkaProducerWithWriter(&fakeWriter{}, nil)
	assert.Error(t, p.Publish(context.Background(), "k", make(chan int)))
}
