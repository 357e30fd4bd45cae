package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWhere(t *testing.T) {
	t.Parallel()

	t.Run("empty filter", func(t *testing.T) {
		t.Parallel()
		where, args := buildWhere(Filter{Limit: 10, Offset: 5})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("all fields", func(t *testing.T) {
		t.Parallel()
		after := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		before := after.AddDate(0, 1, 0)

		where, args := buildWhere(Filter{
			Statuses:      []Status{StatusPending, StatusFailed},
			Type:          TypeEventApproved,
			Recipient:     " Member@Club.Example ",
			CreatedAfter:  after,
			CreatedBefore: before,
			Search:        "50%_off",
		})

		assert.Equal(t,
			" WHERE status = ANY($1) AND type = $2"+
				" AND ($3 = ANY(to_addrs) OR $3 = ANY(cc_addrs) OR $3 = ANY(bcc_addrs))"+
				" AND created_at >= $4 AND created_at < $5 AND subject ILIKE $6",
			where)
		require.Len(t, args, 6)
		assert.Equal(t, []string{"pending", "failed"}, args[0])
		assert.Equal(t, "event_approved", args[1])
		assert.Equal(t, "member@club.example", args[2])
		assert.Equal(t, after, args[3])
		assert.Equal(t, before, args[4])
		assert.Equal(t, `%50\%\_off%`, args[5])
	})
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", escapeLike("plain"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, `100\%`, escapeLike("100%"))
}

func TestScanHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, nonNil(nil))
	assert.Nil(t, nilIfEmpty([]string{}))
	assert.Equal(t, []string{"a"}, nilIfEmpty([]string{"a"}))
}
