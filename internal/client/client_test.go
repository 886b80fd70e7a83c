package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logrelay/internal/model"
)

func sseServer(t *testing.T, body func(w http.ResponseWriter, f http.Flusher)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logs/stream/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		body(w, f)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestStreamDecodesEventsAndSkipsComments(t *testing.T) {
	ts := sseServer(t, func(w http.ResponseWriter, f http.Flusher) {
		fmt.Fprint(w, `data: {"timestamp":"t1","level":"INFO","message":"one","logger_name":"main"}`+"\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, `data: {"timestamp":"t2","level":"ERROR","message":"two","logger_name":"main"}`+"\n\n")
		f.Flush()
	})

	var got []model.LogEntry
	err := New(ts.URL, nil).Stream(context.Background(), "main", func(e model.LogEntry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, "ERROR", got[1].Level)
	assert.Equal(t, "t2", got[1].Timestamp)
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	ts := sseServer(t, func(w http.ResponseWriter, f http.Flusher) {
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "data: {\"message\":\"m%d\"}\n\n", i)
		}
		f.Flush()
	})

	stop := errors.New("stop")
	n := 0
	err := New(ts.URL, nil).Stream(context.Background(), "main", func(model.LogEntry) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestStreamCancelIsNotAnError(t *testing.T) {
	ts := sseServer(t, func(w http.ResponseWriter, f http.Flusher) {
		fmt.Fprint(w, ": keep-alive\n\n")
		f.Flush()
		time.Sleep(2 * time.Second)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := New(ts.URL, nil).Stream(ctx, "main", func(model.LogEntry) error { return nil })
	assert.NoError(t, err)
}

func TestStreamBadStatus(t *testing.T) {
	ts := sseServer(t, func(http.ResponseWriter, http.Flusher) {})
	err := New(ts.URL+"/", nil).Stream(context.Background(), "missing", func(model.LogEntry) error { return nil })
	assert.ErrorContains(t, err, "unexpected status")
}
