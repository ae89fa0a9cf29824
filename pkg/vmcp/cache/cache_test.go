package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-gateway/pkg/vmcp"
)

func TestCache_RefreshPopulatesSnapshot(t *testing.T) {
	t.Parallel()

	c := New("acme/srv1", func(context.Context) (*Snapshot, error) {
		return &Snapshot{Tools: []vmcp.Tool{{Name: "search"}}, RefreshedAt: time.Now()}, nil
	})

	assert.Nil(t, c.Snapshot())
	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Tools, 1)
	assert.Equal(t, snap, c.Snapshot())
}

func TestCache_ConcurrentRefreshesCollapse(t *testing.T) {
	t.Parallel()

	var calls int32
	c := New("acme/srv1", func(context.Context) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return &Snapshot{Tools: []vmcp.Tool{{Name: "search"}}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_ToolMissTriggersRefresh(t *testing.T) {
	t.Parallel()

	var calls int32
	c := New("acme/srv1", func(context.Context) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return &Snapshot{Tools: []vmcp.Tool{{Name: "search"}}}, nil
	})

	tool, err := c.Tool(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, "search", tool.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.Tool(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup should hit the cached snapshot")
}

func TestCache_UnknownToolErrors(t *testing.T) {
	t.Parallel()

	c := New("acme/srv1", func(context.Context) (*Snapshot, error) {
		return &Snapshot{Tools: nil}, nil
	})

	_, err := c.Tool(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCache_InvalidateForcesRefresh(t *testing.T) {
	t.Parallel()

	var calls int32
	c := New("acme/srv1", func(context.Context) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return &Snapshot{Tools: []vmcp.Tool{{Name: "search"}}}, nil
	})

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.Invalidate()
	assert.Nil(t, c.Snapshot())

	_, err = c.Tool(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
