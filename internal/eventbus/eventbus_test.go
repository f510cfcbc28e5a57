package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type started struct{ Name string }
type finished struct{ Name string }

func withBus(t *testing.T) {
	t.Helper()
	Use(New())
	t.Cleanup(func() { Use(nil) })
}

func TestPublishDispatchesByType(t *testing.T) {
	withBus(t)
	var got []string
	Subscribe(func(_ context.Context, e started) { got = append(got, "start:"+e.Name) })
	Subscribe(func(_ context.Context, e finished) { got = append(got, "finish:"+e.Name) })

	Publish(context.Background(), started{Name: "factions"})
	Publish(context.Background(), finished{Name: "factions"})
	Publish(context.Background(), "unrelated")

	require.Equal(t, []string{"start:factions", "finish:factions"}, got)
}

func TestUnsubscribe(t *testing.T) {
	withBus(t)
	var a, b int
	unsubA := Subscribe(func(context.Context, started) { a++ })
	Subscribe(func(context.Context, started) { b++ })

	Publish(context.Background(), started{})
	unsubA()
	unsubA()
	Publish(context.Background(), started{})

	require.Equal(t, 1, a)
	require.Equal(t, 2, b)
}

func TestHandlerReceivesContext(t *testing.T) {
	withBus(t)
	type ctxKey struct{}
	var seen any
	Subscribe(func(ctx context.Context, _ started) { seen = ctx.Value(ctxKey{}) })
	Publish(context.WithValue(context.Background(), ctxKey{}, "fetch-1"), started{})
	require.Equal(t, "fetch-1", seen)
}

func TestNoBusIsNoop(t *testing.T) {
	Use(nil)
	called := false
	unsub := Subscribe(func(context.Context, started) { called = true })
	Publish(context.Background(), started{})
	unsub()
	require.False(t, called)
}
