package watermillpublisher

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	metadataType  = "type"
	metadataIndex = "index"
)

type publisher struct {
	publisher message.Publisher
	topic     string
}

// NewPublisher publishes index events as JSON messages on topic through the
// given watermill publisher.
func NewPublisher(pub message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = domain.DepositIndexTopic
	}
	return &publisher{pub, topic}
}

// NewGoChannelPublisher returns an in-process publisher along with the
// underlying pubsub so that local consumers can subscribe to it.
func NewGoChannelPublisher(bufferSize int64) (ports.EventPublisher, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: bufferSize},
		watermill.NewStdLogger(false, false),
	)
	return NewPublisher(pubSub, domain.DepositIndexTopic), pubSub
}

// NewPostgresPublisher stores events in the watermill_<topic> table of the
// given database.
func NewPostgresPublisher(db *sql.DB) (ports.EventPublisher, error) {
	pub, err := watermillSQL.NewPublisher(db,
		watermillSQL.PublisherConfig{
			SchemaAdapter:        watermillSQL.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot open event publisher: %w", err)
	}
	return NewPublisher(pub, domain.DepositIndexTopic), nil
}

func (p *publisher) Publish(ctx context.Context, events ...domain.IndexEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]*message.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
		}
		msg := message.NewMessage(uuid.NewString(), payload)
		msg.Metadata.Set(metadataType, string(event.Type))
		msg.Metadata.Set(metadataIndex, event.Index)
		msg.SetContext(ctx)
		msgs = append(msgs, msg)
	}

	return p.publisher.Publish(p.topic, msgs...)
}

func (p *publisher) Close() {
	if err := p.publisher.Close(); err != nil {
		log.WithError(err).Warn("failed to close event publisher")
	}
}

// DecodeEvent parses the payload of a message produced by Publish.
func DecodeEvent(msg *message.Message) (*domain.IndexEvent, error) {
	var event domain.IndexEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("malformed index event %s: %w", msg.UUID, err)
	}
	return &event, nil
}
