package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/utils/async"
)

type ctxKey struct{}

func TestDispatch_DetachesFromCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	done := make(chan error, 1)

	async.Dispatch(ctx, "detach", func(ctx context.Context) error {
		<-time.After(10 * time.Millisecond)
		done <- ctx.Err()
		return nil
	})
	cancel()

	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	async.Dispatch(context.Background(), "test", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})
	<-done

	finished := make(chan struct{})
	async.Dispatch(context.Background(), "test", func(ctx context.Context) error {
		defer close(finished)
		return errors.New("failed")
	})
	<-finished
}
