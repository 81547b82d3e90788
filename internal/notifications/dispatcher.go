package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/push"
	"go.uber.org/zap"
)

const defaultPushTimeout = 5 * time.Second

// EndpointLister returns the active push endpoints of a user.
type EndpointLister interface {
	ActiveEndpoints(ctx context.Context, userID string) ([]DeviceEndpoint, error)
}

// DispatcherConfig wires the dispatcher to its collaborators.
type DispatcherConfig struct {
	Endpoints   EndpointLister
	Push        push.Client
	Hub         *Hub
	PushTimeout time.Duration
	Logger      *zap.Logger
}

// Dispatcher delivers recorded notifications. Each endpoint gets its own task
// with its own timeout, so one slow device never delays the others.
type Dispatcher struct {
	endpoints EndpointLister
	push      push.Client
	hub       *Hub
	timeout   time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher constructs a dispatcher; a nil push client disables device delivery.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Endpoints == nil {
		return nil, fmt.Errorf("notifications: endpoint lister is required")
	}
	client := cfg.Push
	if client == nil {
		client = push.NopClient{}
	}
	timeout := cfg.PushTimeout
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		endpoints: cfg.Endpoints,
		push:      client,
		hub:       cfg.Hub,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Dispatch publishes record to live subscribers and pushes it to every active
// endpoint of its user. Pushes run detached from ctx cancellation and are
// never retried; failures are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, record Record) {
	detached := context.WithoutCancel(ctx)
	if d.hub != nil {
		d.hub.Publish(Event{UserID: record.UserID, Record: record})
	}

	endpoints, err := d.endpoints.ActiveEndpoints(detached, record.UserID)
	if err != nil {
		d.logger.Warn("device lookup failed",
			zap.Int64("notification_id", record.ID),
			zap.String("user_id", record.UserID),
			zap.Error(err),
		)
		return
	}

	message := push.Message{
		Title: record.Title,
		Body:  record.Body,
		Data:  pushData(record),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatch after close skipped",
			zap.Int64("notification_id", record.ID),
			zap.String("user_id", record.UserID),
		)
		return
	}
	d.inflight.Add(len(endpoints))
	d.mu.Unlock()

	for _, endpoint := range endpoints {
		target := message
		target.Token = endpoint.Token
		target.DeviceKind = string(endpoint.DeviceKind)
		go d.deliver(detached, record.ID, endpoint.ID, target)
	}
}

// Wait blocks until every in-flight push has finished. It must not race with
// Dispatch; use Close on shutdown.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Close stops accepting pushes and waits for the in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.inflight.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, notificationID int64, endpointID string, message push.Message) {
	defer d.inflight.Done()
	pushCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.push.Send(pushCtx, message); err != nil {
		d.logger.Warn("push delivery failed",
			zap.Int64("notification_id", notificationID),
			zap.String("endpoint_id", endpointID),
			zap.Error(err),
		)
	}
}

func pushData(record Record) map[string]string {
	data := map[string]string{
		"notification_id": strconv.FormatInt(record.ID, 10),
		"type":            string(record.Type),
	}
	if len(record.Payload) == 0 {
		return data
	}
	var payload map[string]any
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return data
	}
	for key, value := range payload {
		if _, reserved := data[key]; reserved {
			continue
		}
		switch typed := value.(type) {
		case string:
			data[key] = typed
		case nil:
		default:
			encoded, err := json.Marshal(typed)
			if err == nil {
				data[key] = string(encoded)
			}
		}
	}
	return data
}
