package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/review"
)

var _ review.IDGenerator = Generator{}

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	ids := make([]string, 0, 5)
	for range 5 {
		id, err := gen.NewID()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for i, id := range ids {
		parsed, err := goUUID.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, goUUID.Version(7), parsed.Version())
		if i > 0 {
			assert.Less(t, ids[i-1], id, "ids sort in creation order")
		}
	}
}
