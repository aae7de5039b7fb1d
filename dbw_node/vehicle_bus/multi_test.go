package bus

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

func TestMultiCallsEverySink(t *testing.T) {
	t.Parallel()

	failing := &stubPublisher{err: errBoom}
	ok := &stubPublisher{}
	m := Multi{failing, ok}

	err := m.PublishActuation(context.Background(), loop.NewActuation(0.1, 0, 0))
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, failing.actuations)
	assert.Equal(t, 1, ok.actuations)

	require.ErrorIs(t, m.PublishCTE(context.Background(), 0.5), errBoom)
	assert.Equal(t, []float64{0.5}, ok.ctes)

	assert.NoError(t, Multi{ok}.PublishCTE(context.Background(), 1))
	assert.NoError(t, Multi{}.PublishActuation(context.Background(), loop.Actuation{}))
}

func TestLogPublisherWritesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewLogPublisher(utils.NewLogger(&buf, utils.DEBUG))
	require.NoError(t, p.PublishActuation(context.Background(), loop.NewActuation(0.2, 0, 0.05)))
	require.NoError(t, p.PublishCTE(context.Background(), -0.4))

	out := buf.String()
	assert.Contains(t, out, "throttle=0.200 (percent)")
	assert.Contains(t, out, "cte=-0.4000")
}
