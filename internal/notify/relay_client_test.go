package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayClient(t *testing.T) {
	t.Run("posts message as json to send-email", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)

		var got Message
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			as.Equal(http.MethodPost, r.Method)
			as.Equal("/send-email", r.URL.Path)
			as.Equal("application/json", r.Header.Get("Content-Type"))
			as.NoError(json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"message":"Email sent successfully!"}`))
		}))
		defer srv.Close()

		client := NewRelayClient(srv.URL+"/", RelayOptions{Timeout: time.Second})
		err := client.Notify(context.Background(), Message{To: "a@example.com", Subject: "hi", Text: "body"})
		reqrd.NoError(err)
		as.Equal(Message{To: "a@example.com", Subject: "hi", Text: "body"}, got)
	})

	t.Run("relay failure is returned", func(tt *testing.T) {
		as := assert.New(tt)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"Failed to send email"}`))
		}))
		defer srv.Close()

		client := NewRelayClient(srv.URL, RelayOptions{Timeout: time.Second})
		err := client.Notify(context.Background(), Message{To: "a@example.com"})
		as.ErrorContains(err, "500")
	})

	t.Run("breaker opens after consecutive failures", func(tt *testing.T) {
		as := assert.New(tt)
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewRelayClient(srv.URL, RelayOptions{
			Timeout:         time.Second,
			BreakerFailures: 2,
			BreakerTimeout:  time.Minute,
		})
		for i := 0; i < 2; i++ {
			as.Error(client.Notify(context.Background(), Message{To: "a@example.com"}))
		}
		err := client.Notify(context.Background(), Message{To: "a@example.com"})
		as.ErrorIs(err, gobreaker.ErrOpenState)
		as.EqualValues(2, atomic.LoadInt32(&calls))
	})
}
