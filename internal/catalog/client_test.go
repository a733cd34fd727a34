package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"_id":"p1","name":"Keyboard","price":49.5,"image":"kb.png"},
			{"_id":"p2","title":"Mouse","price":"19.99","thumbnail":"m.png"},
			{"title":"broken"}
		]`))
	})
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch chi.URLParam(r, "id") {
		case "p1":
			w.Write([]byte(`{"_id":"p1","name":"Keyboard","price":49.5}`))
		case "null":
			w.Write([]byte(`null`))
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r.Get("/services/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"_id":"` + chi.URLParam(r, "id") + `","title":"Consulting","price":300}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestListProducts_SkipsMalformed(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL, time.Second, slog.Default())

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Keyboard", products[0].Name)
	assert.Equal(t, "Mouse", products[1].Name)
	assert.Equal(t, "m.png", products[1].ImageURL)
	assert.Equal(t, "19.99", products[1].Price.String())
}

func TestGetProduct(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL+"/", time.Second, slog.Default())

	p, err := client.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, KindProduct, p.Kind)
	assert.Equal(t, "49.5", p.Price.String())
}

func TestGetProduct_NotFound(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL, time.Second, slog.Default())

	_, err := client.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.GetProduct(context.Background(), "null")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.GetProduct(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetService(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL, time.Second, slog.Default())

	s, err := client.Get(context.Background(), KindService, "s9")
	require.NoError(t, err)
	assert.Equal(t, "s9", s.ID)
	assert.Equal(t, KindService, s.Kind)
	assert.Equal(t, "Consulting", s.Name)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL, time.Second, slog.Default())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.GetProduct(ctx, "boom")
		require.ErrorIs(t, err, ErrUnavailable)
	}
	before := hits.Load()

	_, err := client.GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the server")
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL, time.Second, slog.Default())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.GetProduct(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	}

	_, err := client.GetProduct(ctx, "p1")
	assert.NoError(t, err)
}

func TestClient_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, slog.Default())
	_, err := client.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_CallerCancelDoesNotFailSharedFetch(t *testing.T) {
	hit := make(chan struct{}, 8)
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		hit <- struct{}{}
		<-release
		w.Write([]byte(`{"_id":"p1","name":"Keyboard","price":49.5}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, 5*time.Second, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.GetProduct(ctx, "p1")
		firstErr <- err
	}()
	<-hit

	secondErr := make(chan error, 1)
	go func() {
		_, err := client.GetProduct(context.Background(), "p1")
		secondErr <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.NoError(t, <-secondErr)
}

func TestClient_CancelledCallersDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	client := NewClient(srv.URL, time.Second, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := client.GetProduct(ctx, "p1")
		require.ErrorIs(t, err, context.Canceled)
	}

	_, err := client.GetProduct(context.Background(), "p1")
	assert.NoError(t, err)
}
