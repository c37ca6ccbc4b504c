package statusrelay

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRelay_EncodeDecode(t *testing.T) {
	a := NewWithClient(nil, WithOrigin("a"))
	b := NewWithClient(nil, WithOrigin("b"))

	sent := printing.NewPrintFailedStatus("job-1", "printer rejected job: paper out")
	data, err := a.encode(sent)
	require.NoError(t, err)

	got, fromPeer, err := b.decode(string(data))
	require.NoError(t, err)
	assert.True(t, fromPeer)
	assert.Equal(t, sent.Message, got.Message)
	assert.Equal(t, sent.JobID, got.JobID)
	assert.False(t, got.Success)
	assert.Equal(t, printing.ChannelPrintStatus, got.Channel)

	_, fromPeer, err = a.decode(string(data))
	require.NoError(t, err)
	assert.False(t, fromPeer)
}

func TestRelay_HandleSkipsOwnAndMalformed(t *testing.T) {
	r := NewWithClient(nil, WithOrigin("self"), WithLogger(zaptest.NewLogger(t)))
	peer := NewWithClient(nil, WithOrigin("peer"))

	var received []printing.Status
	callback := func(s printing.Status) { received = append(received, s) }

	own, err := r.encode(printing.NewPrintSentStatus("1"))
	require.NoError(t, err)
	theirs, err := peer.encode(printing.NewPrintSentStatus("2"))
	require.NoError(t, err)

	r.handle(string(own), callback)
	r.handle("{not json", callback)
	r.handle(string(theirs), callback)

	require.Len(t, received, 1)
	assert.Equal(t, "2", received[0].JobID)
}

func TestRelay_HandleRecoversPanics(t *testing.T) {
	r := NewWithClient(nil, WithOrigin("self"), WithLogger(zaptest.NewLogger(t)))
	peer := NewWithClient(nil, WithOrigin("peer"))
	data, err := peer.encode(printing.NewUpdateStatus(true, "Update available"))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.handle(string(data), func(printing.Status) { panic("boom") })
	})
}

func TestRelay_Options(t *testing.T) {
	r := NewWithClient(nil)
	assert.Equal(t, DefaultChannel, r.Channel())
	assert.NotEmpty(t, r.Origin())

	r = NewWithClient(nil, WithChannel("custom"), WithChannel(""), WithOrigin(""))
	assert.Equal(t, "custom", r.Channel())
	assert.NotEmpty(t, r.Origin())
	assert.NoError(t, r.Close())
}

// TestRelay_RoundTrip needs a reachable Redis, e.g. PRINTAGENT_TEST_REDIS_ADDR=localhost:6379
func TestRelay_RoundTrip(t *testing.T) {
	addr := os.Getenv("PRINTAGENT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRINTAGENT_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	channel := "printagent:test:" + t.Name()
	sender, err := New(ctx, Config{Addr: addr, Channel: channel})
	require.NoError(t, err)
	defer sender.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	receiver := NewWithClient(client, WithChannel(channel))

	got := make(chan printing.Status, 1)
	go func() { _ = receiver.Subscribe(ctx, func(s printing.Status) { got <- s }) }()

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] > 0
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, sender.Publish(ctx, printing.NewPrintSentStatus("job-9")))

	select {
	case s := <-got:
		assert.Equal(t, "job-9", s.JobID)
		assert.Equal(t, printing.MessagePrintSent, s.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("status not relayed")
	}

	assert.NoError(t, receiver.Close())
}
