// Package kafka publishes subsetting verdicts as JSON events so downstream
// consumers can react to a run without sharing storage with it.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/moleculab/synthon-sieve/internal/application/subsetting"
	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// VerdictEvent is the wire envelope for a published verdict.
type VerdictEvent struct {
	RunID     string             `json:"run_id"`
	EmittedAt time.Time          `json:"emitted_at"`
	Verdict   subsetting.Verdict `json:"verdict"`
}

// VerdictPublisher is a subsetting.Sink that writes every verdict to a Kafka
// topic.  Messages are keyed by compound ID so all verdicts for one compound
// land on the same partition.
type VerdictPublisher struct {
	writer *kafka.Writer
	runID  string
	log    logging.Logger
}

// NewVerdictPublisher builds a publisher for the given run.
func NewVerdictPublisher(cfg config.KafkaConfig, runID string, log logging.Logger) (*VerdictPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "kafka brokers list is empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.CodeInvalidParam, "kafka topic is empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return &VerdictPublisher{
		writer: writer,
		runID:  runID,
		log:    log.Named("kafka"),
	}, nil
}

// Write implements subsetting.Sink.
func (p *VerdictPublisher) Write(ctx context.Context, v subsetting.Verdict) error {
	event := VerdictEvent{
		RunID:     p.runID,
		EmittedAt: time.Now().UTC(),
		Verdict:   v,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "marshal verdict event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(v.CompoundID),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeSinkFailed, "publish verdict")
	}
	return nil
}

// Close implements subsetting.Sink.
func (p *VerdictPublisher) Close(_ context.Context) error {
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(err, errors.CodeSinkFailed, "close kafka writer")
	}
	p.log.Info("verdict publisher closed")
	return nil
}
