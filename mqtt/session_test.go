package mqtt

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metamakers.org/rfid-access-mqtt/config"
)

func TestQueueOverflowDrops(t *testing.T) {
	queue := NewQueue(2)

	require.NoError(t, queue.Push(Message{Topic: "a"}))
	require.NoError(t, queue.Push(Message{Topic: "b"}))
	assert.ErrorIs(t, queue.Push(Message{Topic: "c"}), ErrQueueFull)
	assert.Equal(t, 2, queue.Len())

	var topics []string
	handled := queue.Drain(func(message Message) {
		topics = append(topics, message.Topic)
	})

	assert.Equal(t, 2, handled)
	assert.Equal(t, []string{"a", "b"}, topics)
	assert.Equal(t, 0, queue.Len())
}

func TestQueueDrainLeavesLatePushesForNextCall(t *testing.T) {
	queue := NewQueue(4)
	require.NoError(t, queue.Push(Message{Topic: "first"}))

	handled := queue.Drain(func(message Message) {
		require.NoError(t, queue.Push(Message{Topic: "late"}))
	})

	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, queue.Len())

	var topics []string
	queue.Drain(func(message Message) { topics = append(topics, message.Topic) })
	assert.Equal(t, []string{"late"}, topics)
}

func TestQueueMinimumSize(t *testing.T) {
	queue := NewQueue(0)
	require.NoError(t, queue.Push(Message{}))
	assert.ErrorIs(t, queue.Push(Message{}), ErrQueueFull)
}

func TestCloserClosesOnce(t *testing.T) {
	done := newCloser()
	assert.False(t, done.closed())

	first := errors.New("keepalive timeout")
	done.close(first)
	done.close(errors.New("second"))

	assert.True(t, done.closed())
	assert.Equal(t, first, done.reason())
	select {
	case <-done.done:
	case <-time.After(time.Second):
		t.Fatal("done was not closed")
	}
}

func TestCheckInTopics(t *testing.T) {
	topic := CheckInTopicFor("ESP32_Relay_Client")
	assert.Equal(t, "rfid/check_in/ESP32_Relay_Client", topic)

	clientID, ok := ClientIDFromTopic(topic)
	require.True(t, ok)
	assert.Equal(t, "ESP32_Relay_Client", clientID)

	tcs := []string{ScanTopic, LoginTopic, "rfid", "other/check_in/x"}
	for _, tc := range tcs {
		_, ok := ClientIDFromTopic(tc)
		assert.False(t, ok, tc)
	}
}

func TestNewDialer(t *testing.T) {
	broker := config.Default().Broker
	broker.URL = "mqtt://broker.local"

	dialer, err := NewDialer(broker, "scanner", zerolog.Nop())
	require.NoError(t, err)
	v5, ok := dialer.(V5Dialer)
	require.True(t, ok, fmt.Sprintf("%T", dialer))
	assert.Equal(t, "broker.local:1883", v5.ServerURL.Host)
	assert.Equal(t, uint16(20), v5.KeepAlive)

	broker.Protocol = config.ProtocolV3
	dialer, err = NewDialer(broker, "scanner", zerolog.Nop())
	require.NoError(t, err)
	_, ok = dialer.(V3Dialer)
	assert.True(t, ok)

	broker.Protocol = "4"
	_, err = NewDialer(broker, "scanner", zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestKeepAliveSeconds(t *testing.T) {
	assert.Equal(t, uint16(0), keepAliveSeconds(-1))
	assert.Equal(t, uint16(20), keepAliveSeconds(20.4))
	assert.Equal(t, uint16(65535), keepAliveSeconds(1e9))
}
