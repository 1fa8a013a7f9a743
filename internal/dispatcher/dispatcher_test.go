package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

func (l *testLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, level+":") {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("Animation.animationCreated", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Method: "Animation.animationCreated", Params: "a1"})

	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, "a1", got.Params)
	assert.False(t, got.Timestamp.IsZero(), "dispatch stamps events")
}

func TestDispatcher_KeepsTimestamp(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var got time.Time
	d.Register("m", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})
	_, err := d.Dispatch(Event{Method: "m", Timestamp: ts})

	require.NoError(t, err)
	assert.Equal(t, ts, got)
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Method: "Network.requestWillBeSent"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Contains(t, err.Error(), "Network.requestWillBeSent")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("record", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Method: "record"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	d.Close()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 3)
	block := make(chan struct{})
	d.Register("full", func(e Event) (any, error) {
		started <- struct{}{}
		<-block
		return nil, nil
	}, Buffered(2))

	_, err := d.Dispatch(Event{Method: "full"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Method: "full"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Method: "full"})
	require.NoError(t, err)
	assert.Equal(t, 2, d.QueueLen())

	_, err = d.Dispatch(Event{Method: "full"})
	assert.EqualError(t, err, "queue full: full")

	close(block)
	d.Close()
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 4)
	block := make(chan struct{})
	d.Register("blocking", func(e Event) (any, error) {
		started <- struct{}{}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Method: "blocking"})
	<-started
	d.Dispatch(Event{Method: "blocking"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Method: "blocking"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
	d.Close()
}

func TestDispatcher_Close(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register("late", func(e Event) (any, error) { return nil, nil }, Buffered(1))

	d.Close()
	d.Close()

	_, err := d.Dispatch(Event{Method: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_BufferedErrorsAreLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)
	d.Register("fails", func(e Event) (any, error) {
		return nil, errors.New("storage down")
	}, Buffered(4))

	d.Dispatch(Event{Method: "fails"})
	d.Close()

	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("logged", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Method: "logged"})

	assert.Equal(t, 2, logger.count("DEBUG"))
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("error", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	_, err := d.Dispatch(Event{Method: "error"})

	assert.EqualError(t, err, "test error")
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("exists", func(e Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler("exists"))
	assert.False(t, d.HasHandler("missing"))
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("combined", func(e Event) (any, error) {
		processed.Add(1)
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Method: "combined"})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	d.Close()

	assert.Equal(t, int32(1), processed.Load())
	assert.Equal(t, 2, logger.count("DEBUG"))
}
