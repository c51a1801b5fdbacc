package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crime-change-map/internal/config"
	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// batchSize bounds how many messages go into one WriteMessages call.
const batchSize = 500

// Publisher produces change records to a Kafka topic.
// It implements pipeline.ChangePublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one message per record. Records keyed by cell hash to the
// same partition, so a consumer sees every run's value for a cell in order.
func (p *Publisher) Publish(ctx context.Context, run domain.Run, records []domain.ChangeRecord) error {
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(run, records[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write change records: %w", err)
		}
	}
	p.logger.Info("change records published", "topic", p.writer.Topic, "run_id", run.ID, "records", len(records))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// changeMessage is the JSON value of a published record.
type changeMessage struct {
	RunID string `json:"run_id"`
	domain.ChangeRecord
}

// serializeToMessage marshals a ChangeRecord into a Kafka message keyed by
// its cell.
func serializeToMessage(run domain.Run, rec domain.ChangeRecord) (kafkago.Message, error) {
	data, err := json.Marshal(changeMessage{RunID: run.ID, ChangeRecord: rec})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Cell.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(run.ID)},
			{Key: "baseline_year", Value: []byte(strconv.Itoa(run.Pair.Baseline))},
			{Key: "comparison_year", Value: []byte(strconv.Itoa(run.Pair.Comparison))},
		},
	}, nil
}
