package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"comic-edge/internal/logs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryMiddleware(t *testing.T) {
	logger := logs.NewLogger(10, logs.DEBUG)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom!")
	})
	recoveredHandler := Recovery(logger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	recoveredHandler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")

	entries := logger.GetLast(1)
	require.Len(t, entries, 1)
	assert.Equal(t, logs.ERROR, entries[0].Level)
	assert.Contains(t, entries[0].Message, "panic recovered: boom!")
}

func TestRecoveryRethrowsAbort(t *testing.T) {
	h := Recovery(logs.NewLogger(10, logs.DEBUG))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestChain(t *testing.T) {
	var order []string
	finalHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	})

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				w.Header().Set("X-Test", "true")
				next.ServeHTTP(w, r)
			})
		}
	}

	chained := Chain(finalHandler, tag("outer"), tag("inner"))
	rr := httptest.NewRecorder()
	chained.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "true", rr.Header().Get("X-Test"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	t.Run("Generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("Reused", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, id, seen)
	})

	t.Run("MalformedReplaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "not-an-id\nInjected: 1")

		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, "not-an-id\nInjected: 1", seen)
	})
}

func TestLoggingRecordsStatus(t *testing.T) {
	logger := logs.NewLogger(10, logs.DEBUG)
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew?x=1", nil))

	entries := logger.GetLast(1)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "GET /brew?x=1 418")
}

func TestInFlight(t *testing.T) {
	var f InFlight
	assert.True(t, f.Idle())

	entered := make(chan struct{})
	release := make(chan struct{})
	h := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
	}))

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}()
	}
	<-entered
	<-entered

	assert.Equal(t, int64(2), f.Count())
	assert.False(t, f.Idle())

	close(release)
	wg.Wait()
	assert.True(t, f.Idle())
}
