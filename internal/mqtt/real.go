package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealClient talks to an actual MQTT broker. It implements Publisher and
// Subscriber.
type RealClient struct {
	client    paho.Client
	assembler *Assembler
	log       *zap.Logger
}

// NewRealClient connects to broker with auto-reconnect.
func NewRealClient(broker, clientID string, log *zap.Logger) (*RealClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if clientID == "" {
		clientID = "smart-climate"
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealClient{
		client:    client,
		assembler: NewAssembler(),
		log:       log,
	}, nil
}

// Subscribe starts delivering assembled snapshots to handler.
func (c *RealClient) Subscribe(handler SnapshotHandler) error {
	token := c.client.Subscribe(sensorFilter, 0, func(_ paho.Client, msg paho.Message) {
		entityID, field, ok := ParseTopic(msg.Topic())
		if !ok {
			return
		}
		input, ready := c.assembler.Update(entityID, field, string(msg.Payload()))
		if !ready {
			c.log.Debug("snapshot incomplete",
				zap.String("entity", entityID), zap.String("field", field))
			return
		}
		handler(entityID, input)
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// PublishResult sends an offset result, QoS 0.
func (c *RealClient) PublishResult(entityID string, at time.Time, result model.OffsetResult) error {
	payload, err := FormatResult(entityID, at, result)
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	token := c.client.Publish(ResultTopic(entityID), 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// PublishSystem sends a lifecycle event, QoS 1 so shutdown events survive.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystem(event)
	if err != nil {
		return fmt.Errorf("format system event: %w", err)
	}
	token := c.client.Publish(TopicSystem, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}
