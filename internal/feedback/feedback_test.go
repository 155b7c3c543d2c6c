package feedback

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Notify("Taking photo")
	c.Notify("Analyzing image")
	require.Equal(t, "» Taking photo\n» Analyzing image\n", buf.String())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify("a")
	r.Notify("b")
	require.Equal(t, []string{"a", "b"}, r.Messages())
	require.True(t, r.Contains("b"))
	require.False(t, r.Contains("c"))
}

func TestAsync_DeliversInOrder(t *testing.T) {
	var r Recorder
	a := NewAsync(&r, 8)
	for _, m := range []string{"one", "two", "three"} {
		a.Notify(m)
	}
	a.Close()
	require.Equal(t, []string{"one", "two", "three"}, r.Messages())
	require.Equal(t, 0, a.Dropped())
}

func TestAsync_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var r Recorder
	blocking := NotifierFunc(func(text string) {
		<-release
		r.Notify(text)
	})

	a := NewAsync(blocking, 1)
	// First message is taken by the loop and blocks; second fills the queue.
	a.Notify("first")
	require.Eventually(t, func() bool { return len(a.queue) == 0 }, time.Second, 5*time.Millisecond)
	a.Notify("second")
	a.Notify("third") // dropped, must not block

	close(release)
	a.Close()
	require.Equal(t, []string{"first", "second"}, r.Messages())
	require.Equal(t, 1, a.Dropped())
}

func TestAsync_NotifyAfterClose(t *testing.T) {
	var r Recorder
	a := NewAsync(&r, 0)
	a.Close()
	a.Notify("late")
	a.Close() // idempotent
	require.Empty(t, r.Messages())
	require.Equal(t, 1, a.Dropped())
}

func TestAsync_ConcurrentNotify(t *testing.T) {
	var r Recorder
	a := NewAsync(&r, 100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Notify("x")
		}()
	}
	wg.Wait()
	a.Close()
	require.Equal(t, 10, len(r.Messages())+a.Dropped())
}

func TestDiscard(t *testing.T) {
	Discard.Notify("ignored")
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	n := Multi(&a, nil, &b)
	n.Notify("Saved")
	require.Equal(t, []string{"Saved"}, a.Messages())
	require.Equal(t, []string{"Saved"}, b.Messages())
}
