package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/publisher"
)

var _ publisher.Publisher = (*Publisher)(nil)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pub := New()
	id1, err := pub.Publish(ctx, "review-runs", publisher.Completion{RunID: "a", Total: 4})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(ctx, "audit", publisher.Completion{RunID: "b"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "review-runs", msgs[0].Topic)
	assert.Equal(t, "audit", msgs[1].Topic)
	assert.Equal(t, "b", msgs[1].Payload.(publisher.Completion).RunID)
	assert.Contains(t, string(msgs[0].Data), `"run_id":"a"`)
	assert.Contains(t, string(msgs[0].Data), `"total":4`)

	msgs[0].Topic = "modified"
	assert.Equal(t, "review-runs", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherRejectsBadInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pub := New()
	_, err := pub.Publish(ctx, "", "x")
	require.Error(t, err)
	_, err = pub.Publish(ctx, "t", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
	assert.Empty(t, pub.Messages())
}

func TestPublisherReset(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "t", "x")
	require.NoError(t, err)
	pub.Reset()
	assert.Empty(t, pub.Messages())
}
