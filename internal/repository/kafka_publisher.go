package repository

import (
	"context"
	"fmt"

	"IndexPulse/internal/domain/models"
	pkgkafka "IndexPulse/pkg/kafka"
	applogger "IndexPulse/pkg/logger"
)

// KafkaPublisher emits index updates and refresh reports to Kafka.
// Messages are keyed by date so per-date ordering holds under the hash
// balancer.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	indexTopic  string
	reportTopic string
	l           *applogger.Logger
}

func NewKafkaPublisher(producer *pkgkafka.Producer, indexTopic, reportTopic string) *KafkaPublisher {
	if indexTopic == "" {
		indexTopic = "indexpulse.index_values"
	}
	if reportTopic == "" {
		reportTopic = "indexpulse.refresh_reports"
	}
	return &KafkaPublisher{producer: producer, indexTopic: indexTopic, reportTopic: reportTopic}
}

// SetLogger injects a structured logger.
func (p *KafkaPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaPublisher) PublishIndexValues(ctx context.Context, values []models.IndexValue) error {
	if len(values) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(values))
	for _, v := range values {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(v.Date.Format("2006-01-02")),
			Value: v,
		})
	}
	if err := p.producer.PublishBatch(ctx, p.indexTopic, msgs); err != nil {
		if p.l != nil {
			p.l.Error("publish index values failed", applogger.Error(err))
		}
		return fmt.Errorf("publish index values: %w", err)
	}
	if p.l != nil {
		p.l.Info("index values published",
			applogger.String("topic", p.indexTopic),
			applogger.Int("count", len(values)),
		)
	}
	return nil
}

func (p *KafkaPublisher) PublishRefreshReport(ctx context.Context, report models.RefreshReport) error {
	key := []byte(report.StartedAt.UTC().Format("2006-01-02T15:04:05Z"))
	if err := p.producer.Publish(ctx, p.reportTopic, key, report); err != nil {
		if p.l != nil {
			p.l.Error("publish refresh report failed", applogger.Error(err))
		}
		return fmt.Errorf("publish refresh report: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher satisfies Publisher when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishIndexValues(context.Context, []models.IndexValue) error      { return nil }
func (NoopPublisher) PublishRefreshReport(context.Context, models.RefreshReport) error   { return nil }
func (NoopPublisher) Close() error                                                       { return nil }
