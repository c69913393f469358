package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

type Message struct {
	Topic   string
	Payload []byte
}

type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader}, nil
}

func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]Message, 0, max)
	for i := 0; i < max; i++ {
		readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return out, nil
			case errors.Is(err, context.Canceled):
				return out, ctx.Err()
			default:
				return out, err
			}
		}
		out = append(out, Message{Topic: msg.Topic, Payload: msg.Value})
	}
	return out, nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

type MessageSource interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// DirectorySync keeps the local program, creator and contract tables in step
// with the services that own them.
type DirectorySync struct {
	logger    *slog.Logger
	source    MessageSource
	directory ports.DirectoryWriter
	batchSize int
}

func NewDirectorySync(logger *slog.Logger, source MessageSource, directory ports.DirectoryWriter, batchSize int) *DirectorySync {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &DirectorySync{logger: logger, source: source, directory: directory, batchSize: batchSize}
}

func DirectoryTopics() []string {
	return []string{
		contracts.TopicProgramTermsUpdated,
		contracts.TopicCreatorAccountUpdated,
		contracts.TopicContractSigned,
	}
}

func (d *DirectorySync) Run(ctx context.Context) error {
	for {
		msgs, err := d.source.Poll(ctx, d.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.ErrorContext(ctx, "directory poll failed",
				"module", "events.directory_sync",
				"layer", "adapter",
				"operation", "poll",
				"outcome", "failure",
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			if err := d.Apply(ctx, msg); err != nil {
				d.logger.WarnContext(ctx, "directory message skipped",
					"module", "events.directory_sync",
					"layer", "adapter",
					"operation", "apply",
					"outcome", "failure",
					"topic", msg.Topic,
					"error", err,
				)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Apply decodes one enveloped upstream record and stores it.
func (d *DirectorySync) Apply(ctx context.Context, msg Message) error {
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", domain.ErrInvalidInput, err)
	}
	switch msg.Topic {
	case contracts.TopicProgramTermsUpdated:
		var p domain.Program
		if err := json.Unmarshal(envelope.Data, &p); err != nil || p.ProgramID == "" {
			return fmt.Errorf("%w: program record", domain.ErrInvalidInput)
		}
		return d.directory.SaveProgram(ctx, p)
	case contracts.TopicCreatorAccountUpdated:
		var c domain.Creator
		if err := json.Unmarshal(envelope.Data, &c); err != nil || c.CreatorID == "" {
			return fmt.Errorf("%w: creator record", domain.ErrInvalidInput)
		}
		return d.directory.SaveCreator(ctx, c)
	case contracts.TopicContractSigned:
		var c domain.Contract
		if err := json.Unmarshal(envelope.Data, &c); err != nil || c.ContractID == "" {
			return fmt.Errorf("%w: contract record", domain.ErrInvalidInput)
		}
		return d.directory.SaveContract(ctx, c)
	default:
		return fmt.Errorf("%w: unexpected topic %s", domain.ErrInvalidInput, msg.Topic)
	}
}
