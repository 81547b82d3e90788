package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticEndpoints struct {
	endpoints []DeviceEndpoint
	err       error
}

func (s staticEndpoints) ActiveEndpoints(context.Context, string) ([]DeviceEndpoint, error) {
	return s.endpoints, s.err
}

type recordingPush struct {
	mu       sync.Mutex
	messages []push.Message
	failFor  string
	block    string
}

func (p *recordingPush) Send(ctx context.Context, message push.Message) error {
	if message.Token == p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	p.messages = append(p.messages, message)
	p.mu.Unlock()
	if message.Token == p.failFor {
		return errors.New("unregistered")
	}
	return nil
}

func TestDispatcherPushesToEveryEndpointIndependently(t *testing.T) {
	client := &recordingPush{failFor: "b", block: "slow"}
	dispatcher, err := NewDispatcher(DispatcherConfig{
		Endpoints: staticEndpoints{endpoints: []DeviceEndpoint{
			{ID: "1", Token: "a", DeviceKind: DeviceAndroid},
			{ID: "2", Token: "b", DeviceKind: DeviceIOS},
			{ID: "3", Token: "slow", DeviceKind: DeviceIOS},
			{ID: "4", Token: "c", DeviceKind: DeviceAndroid},
		}},
		Push:        client,
		PushTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Dispatch(ctx, Record{
		ID:      42,
		UserID:  "bob",
		Type:    TypeMessage,
		Title:   "New Message",
		Body:    "alice: hi",
		Payload: []byte(`{"message_id":7,"sender_id":"alice"}`),
	})
	cancel()
	dispatcher.Wait()

	tokens := map[string]push.Message{}
	for _, message := range client.messages {
		tokens[message.Token] = message
	}
	assert.Len(t, tokens, 3)
	assert.Contains(t, tokens, "a")
	assert.Contains(t, tokens, "b")
	assert.Contains(t, tokens, "c")
	assert.Equal(t, "42", tokens["a"].Data["notification_id"])
	assert.Equal(t, "message", tokens["a"].Data["type"])
	assert.Equal(t, "7", tokens["a"].Data["message_id"])
	assert.Equal(t, "alice", tokens["a"].Data["sender_id"])
}

func TestDispatcherPublishesToHubEvenWithoutDevices(t *testing.T) {
	hub := NewHub()
	dispatcher, err := NewDispatcher(DispatcherConfig{
		Endpoints: staticEndpoints{err: errors.New("db down")},
		Hub:       hub,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, _ := hub.Subscribe(ctx, "bob")

	dispatcher.Dispatch(context.Background(), Record{ID: 1, UserID: "bob", Type: TypeLike})
	dispatcher.Wait()

	select {
	case event := <-stream:
		assert.Equal(t, int64(1), event.Record.ID)
	case <-time.After(time.Second):
		t.Fatal("expected hub event")
	}
}

func TestDispatcherCloseRejectsLateDispatches(t *testing.T) {
	hub := NewHub()
	client := &recordingPush{}
	dispatcher, err := NewDispatcher(DispatcherConfig{
		Endpoints: staticEndpoints{endpoints: []DeviceEndpoint{{ID: "1", Token: "a", DeviceKind: DeviceAndroid}}},
		Push:      client,
		Hub:       hub,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for index := 0; index < 8; index++ {
		index := index
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Dispatch(context.Background(), Record{ID: int64(index + 1), UserID: "bob", Type: TypeLike})
		}()
	}
	dispatcher.Close()
	wg.Wait()

	client.mu.Lock()
	delivered := len(client.messages)
	client.mu.Unlock()

	dispatcher.Dispatch(context.Background(), Record{ID: 99, UserID: "bob", Type: TypeLike})
	dispatcher.Close()

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.LessOrEqual(t, delivered, 8)
	assert.Len(t, client.messages, delivered)
}

func TestNewDispatcherRequiresEndpoints(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{})
	assert.Error(t, err)
}
