package reqctx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_InheritsRequestContextAcrossSuspension(t *testing.T) {
	rc := New([]Header{{Name: "User-Agent", Value: []byte("test-agent")}})
	ctx := WithContext(context.Background(), rc)

	task := Go(ctx, func(ctx context.Context) (string, error) {
		time.Sleep(5 * time.Millisecond)

		ua, _ := Current(ctx).Header("User-Agent")
		return ua, nil
	})

	ua, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-agent", ua)
}

func TestGo_ConcurrentRequestsStayIsolated(t *testing.T) {
	const requests = 50

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		rc := newRC(string(rune('A' + i%26)))
		wg.Go(func() {
			ctx := WithContext(context.Background(), rc)
			task := Go(ctx, func(ctx context.Context) (*RequestContext, error) {
				time.Sleep(time.Millisecond)
				return Current(ctx), nil
			})

			got, err := task.Wait(ctx)
			assert.NoError(t, err)
			assert.Same(t, rc, got)
		})
	}
	wg.Wait()
}

func TestGo_ForwardsError(t *testing.T) {
	wantErr := errors.New("lookup failed")

	task := Go(context.Background(), func(context.Context) (int, error) {
		return 0, wantErr
	})

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, wantErr)
}

func TestGo_PanicReraisedInWaiter(t *testing.T) {
	task := Go(context.Background(), func(context.Context) (int, error) {
		panic("/error_wait is requested")
	})

	<-task.Done()
	assert.PanicsWithValue(t, "/error_wait is requested", func() {
		_, _ = task.Wait(context.Background())
	})
	assert.PanicsWithValue(t, "/error_wait is requested", func() {
		task.Poll(context.Background())
	})
}

func TestTask_PollPendingThenReady(t *testing.T) {
	release := make(chan struct{})
	task := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	p := task.Poll(context.Background())
	assert.False(t, p.Done)
	assert.NotNil(t, p.Wake)

	close(release)
	<-p.Wake

	p = task.Poll(context.Background())
	require.True(t, p.Done)
	assert.Equal(t, 7, p.Value)
}

func TestTask_WaitCanceled(t *testing.T) {
	release := make(chan struct{})
	task := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-task.Done()
}

func TestTask_AwaitWithScoped(t *testing.T) {
	rc := newRC("scoped")
	task := Go(context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	})

	var seen *RequestContext
	probe := FutureFunc[string](func(ctx context.Context) Poll[string] {
		seen = Current(ctx)
		return task.Poll(ctx)
	})

	v, err := Await[string](context.Background(), Scoped[string](probe, rc))

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Same(t, rc, seen)
}
