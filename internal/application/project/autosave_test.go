package project

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFlusher struct{ n atomic.Int32 }

func (c *countingFlusher) Flush(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestAutosaver_RunsAndFlushesOnStop(t *testing.T) {
	f := &countingFlusher{}
	a, err := NewAutosaver(f, "@every 1s", time.Second)
	require.NoError(t, err)
	a.Start()

	assert.Eventually(t, func() bool { return f.n.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	before := f.n.Load()
	require.NoError(t, a.Stop(context.Background()))
	assert.Greater(t, f.n.Load(), before)
}

func TestAutosaver_InvalidSpec(t *testing.T) {
	_, err := NewAutosaver(&countingFlusher{}, "every two minutes", time.Second)
	assert.Error(t, err)
}
