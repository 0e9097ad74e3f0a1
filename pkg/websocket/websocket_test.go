package websocketPkg

import (
	"SignSync/pkg/imaging"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInferenceServer answers every binary frame with reply(values).
func newInferenceServer(t *testing.T, reply func(values []float32) ScoreMessage) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			values, err := DecodeTensor(message)
			if err != nil {
				conn.WriteJSON(ScoreMessage{Error: err.Error()})
				continue
			}
			if err := conn.WriteJSON(reply(values)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitConnected(t *testing.T, c IWebsocket) {
	t.Helper()
	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)
}

func TestEncodeDecodeTensor(t *testing.T) {
	in := &imaging.Tensor{Data: []float32{0, 0.5, 1, -2.25}, Shape: []int64{1, 4}}

	out, err := DecodeTensor(EncodeTensor(in))
	require.NoError(t, err)
	assert.Equal(t, in.Data, out)

	_, err = DecodeTensor([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestPredictRoundTrip(t *testing.T) {
	url := newInferenceServer(t, func(values []float32) ScoreMessage {
		scores := make([]float32, 26)
		scores[len(values)%26] = 0.9
		return ScoreMessage{Scores: scores}
	})

	client := NewInferenceClient(Config{URL: url})
	t.Cleanup(func() { client.Close() })
	waitConnected(t, client)

	scores, err := client.Predict(context.Background(), &imaging.Tensor{
		Data:  make([]float32, 3),
		Shape: []int64{1, 1, 1, 3},
	})
	require.NoError(t, err)
	require.Len(t, scores, 26)
	assert.InDelta(t, 0.9, scores[3], 1e-6)
}

func TestPredictRemoteError(t *testing.T) {
	url := newInferenceServer(t, func([]float32) ScoreMessage {
		return ScoreMessage{Error: "shape mismatch"}
	})

	client := NewInferenceClient(Config{URL: url})
	t.Cleanup(func() { client.Close() })
	waitConnected(t, client)

	_, err := client.Predict(context.Background(), &imaging.Tensor{Data: []float32{1}, Shape: []int64{1}})
	require.ErrorIs(t, err, ErrRemoteInference)
	assert.Contains(t, err.Error(), "shape mismatch")

	// the connection survives an application-level error
	assert.True(t, client.IsConnected())
}

func TestPredictReconnectsAfterClose(t *testing.T) {
	url := newInferenceServer(t, func([]float32) ScoreMessage {
		return ScoreMessage{Scores: []float32{1}}
	})

	client := NewInferenceClient(Config{URL: url})
	t.Cleanup(func() { client.Close() })
	waitConnected(t, client)

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())

	scores, err := client.Predict(context.Background(), &imaging.Tensor{Data: []float32{1}, Shape: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, scores)
	assert.True(t, client.IsConnected())
}

func TestPredictUnreachable(t *testing.T) {
	client := NewInferenceClient(Config{URL: "ws://127.0.0.1:1/infer"})
	t.Cleanup(func() { client.Close() })

	_, err := client.Predict(context.Background(), &imaging.Tensor{Data: []float32{1}, Shape: []int64{1}})
	assert.ErrorContains(t, err, "cannot connect to inference service")
}

func TestPredictCanceledContext(t *testing.T) {
	client := NewInferenceClient(Config{URL: "ws://127.0.0.1:1/infer"})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Predict(ctx, &imaging.Tensor{})
	assert.ErrorIs(t, err, context.Canceled)
}
