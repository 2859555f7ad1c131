package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stock-advisor/internal/advisor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin filtering happens at the CORS layer for the REST routes;
		// websocket clients are local dashboards
		return true
	},
}

type wsMessage struct {
	Type    string          `json:"type"`
	Phase   advisor.Phase   `json:"phase,omitempty"`
	Outcome *advisor.Outcome `json:"outcome,omitempty"`
	Time    time.Time       `json:"time"`
}

// handleAnalyzeWS streams phase updates for one analysis over a websocket,
// then the final outcome, then closes.
func (s *Server) handleAnalyzeWS(c *gin.Context) {
	symbol := c.Param("symbol")
	threshold, _ := strconv.Atoi(c.Query("confidenceThreshold"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// writes come from the phase callback and the final send; serialize them
	var writeMu sync.Mutex
	send := func(msg wsMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug().Err(err).Msg("WebSocket write failed")
		}
	}

	outcome := s.engine.Analyze(c.Request.Context(), symbol, advisor.AnalyzeOpts{
		ConfidenceThreshold: threshold,
		OnPhase: func(p advisor.Phase) {
			send(wsMessage{Type: "phase", Phase: p, Time: time.Now().UTC()})
		},
	})

	send(wsMessage{Type: "outcome", Outcome: &outcome, Time: time.Now().UTC()})

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
