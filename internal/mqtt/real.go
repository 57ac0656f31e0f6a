package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/motion-band/internal/logic"
)

var errNotConnected = errors.New("not connected")

// connectWait bounds how long NewRealPublisher waits for the first connection.
const connectWait = 10 * time.Second

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed, oldest first, when paho
// reconnects.
type RealPublisher struct {
	client  client
	timeout time.Duration

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. A retained
// OFFLINE will is registered on TopicSystem. An unreachable broker is not an
// error: paho keeps retrying and messages are buffered until it connects.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{
		timeout: 5 * time.Second,
		buf:     newRingBuffer(DefaultBufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("motion-band-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, FormatWillPayload(time.Now()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.replay() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	if err := p.connect(connectWait); err != nil {
		return nil, err
	}
	return p, nil
}

// connect waits up to wait for the first connection. On timeout the client
// stays in its retry loop and the publisher is returned usable.
func (p *RealPublisher) connect(wait time.Duration) error {
	token := p.client.Connect()
	if !token.WaitTimeout(wait) {
		log.Printf("mqtt: broker not reachable after %v, buffering until it is", wait)
		return nil
	}
	if err := token.Error(); err != nil {
		p.client.Disconnect(0)
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Publish sends an alert event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// send publishes msg, or buffers it when the connection is down. A buffered
// message is not an error.
func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}

	if err := p.publish(msg); err != nil {
		if errors.Is(err, errNotConnected) {
			p.mu.Lock()
			p.buf.push(msg)
			p.mu.Unlock()
			return nil
		}
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		if !p.client.IsConnectionOpen() {
			return errNotConnected
		}
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// replay publishes everything buffered while disconnected. It runs on paho's
// connect callback.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	log.Printf("mqtt: replaying %d buffered messages", len(pending))
	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			log.Printf("mqtt: replay stopped: %v", err)
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buf.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
