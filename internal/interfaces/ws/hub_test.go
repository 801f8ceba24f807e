package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimaneth/blitzproof/internal/score"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHub_BroadcastsScoreUpdates(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn := dialHub(t, h)

	// Registration happens inside ServeHTTP before the dial returns.
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	h.ScoreUpdated(score.BlitzProofScore{
		TokenID:      "pepe",
		OverallScore: 72,
		Rating:       score.RatingA,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var event struct {
		Type         string `json:"type"`
		TokenID      string `json:"token_id"`
		OverallScore int    `json:"overall_score"`
		Rating       string `json:"rating"`
	}
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, "score-updated", event.Type)
	assert.Equal(t, "pepe", event.TokenID)
	assert.Equal(t, 72, event.OverallScore)
	assert.Equal(t, "A", event.Rating)
}

func TestHub_DisconnectedClientIsRemoved(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn := dialHub(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithNoClientsIsSafe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	h.ScoreUpdated(score.BlitzProofScore{TokenID: "pepe"})
	assert.Zero(t, h.ClientCount())
}
