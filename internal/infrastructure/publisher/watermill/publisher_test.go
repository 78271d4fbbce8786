package watermillpublisher_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/arkade-os/depositd/internal/core/domain"
	watermillpublisher "github.com/arkade-os/depositd/internal/infrastructure/publisher/watermill"
	"github.com/stretchr/testify/require"
)

func TestGoChannelPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, pubSub := watermillpublisher.NewGoChannelPublisher(10)
	defer pub.Close()

	msgs, err := pubSub.Subscribe(ctx, domain.DepositIndexTopic)
	require.NoError(t, err)

	events := []domain.IndexEvent{
		{Type: domain.EventBlockPushed, Index: "main", Height: 0, Size: 1, FullAmount: 100},
		{Type: domain.EventBlocksRolledBack, Index: "main", Height: 0, Removed: 1},
	}
	require.NoError(t, pub.Publish(ctx, events...))
	require.NoError(t, pub.Publish(ctx))

	for _, expected := range events {
		var msg *message.Message
		select {
		case msg = <-msgs:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
		msg.Ack()

		require.Equal(t, string(expected.Type), msg.Metadata.Get("type"))
		require.Equal(t, "main", msg.Metadata.Get("index"))

		got, err := watermillpublisher.DecodeEvent(msg)
		require.NoError(t, err)
		require.Equal(t, expected, *got)
	}

	_, err = watermillpublisher.DecodeEvent(message.NewMessage("id", []byte("{")))
	require.Error(t, err)
}
