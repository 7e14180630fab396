package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"github.com/sakashimaa/banobox-orders/pkg/utils"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key string, message any) error
	Close() error
}

type producer struct {
	syncProducer sarama.SyncProducer
	cb           *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) (Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}

	return newProducer(p, logger), nil
}

func newProducer(p sarama.SyncProducer, logger *zap.Logger) *producer {
	return &producer{
		syncProducer: p,
		cb:           utils.NewBreaker("KafkaProducer", logger),
		logger:       logger,
	}
}

func (p *producer) ProduceMessage(ctx context.Context, topic string, key string, message any) error {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(jsonMsg),
		Headers: headers,
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	type sent struct {
		partition int32
		offset    int64
	}

	res, err := utils.ExecuteWithBreaker(p.cb, func() (sent, error) {
		partition, offset, err := p.syncProducer.SendMessage(msg)
		return sent{partition: partition, offset: offset}, err
	})
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Message sent",
		zap.String("topic", topic),
		zap.Int32("partition", res.partition),
		zap.Int64("offset", res.offset),
	)

	return nil
}

func (p *producer) Close() error {
	return p.syncProducer.Close()
}
