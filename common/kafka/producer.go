package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
)

// Topics carries the topic names the producer publishes to.
type Topics struct {
	Audit        string
	Notification string
}

// Producer publishes audit records and override notifications. In mock mode
// nothing leaves the process: messages are only logged.
type Producer struct {
	producer sarama.SyncProducer
	mockMode bool
	topics   Topics
	log      *logger.Logger
}

// NewProducer connects to brokers. An empty broker list selects mock mode.
func NewProducer(brokers []string, topics Topics, log *logger.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		log.With("component", "kafka").Info("No brokers configured, producer running in mock mode")
		return &Producer{mockMode: true, topics: topics, log: log}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return NewProducerWith(producer, topics, log), nil
}

// NewProducerWith wraps an existing sarama producer.
func NewProducerWith(producer sarama.SyncProducer, topics Topics, log *logger.Logger) *Producer {
	return &Producer{producer: producer, topics: topics, log: log}
}

// PublishAudit sends one audit record keyed by the entity id.
func (p *Producer) PublishAudit(record models.AuditRecord) error {
	return p.publish(p.topics.Audit, record.EntityID, record)
}

// PublishOverrideNotification sends one notification keyed by the override id.
func (p *Producer) PublishOverrideNotification(n models.OverrideNotification) error {
	return p.publish(p.topics.Notification, n.OverrideID, n)
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	log := p.log.WithFields(map[string]interface{}{"component": "kafka", "topic": topic, "key": key})
	if p.mockMode {
		log.Debug("Mock publish: %s", string(data))
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		log.WithError(err).Error("Failed to send message")
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}
	log.Debug("Message sent to partition %d at offset %d", partition, offset)
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
