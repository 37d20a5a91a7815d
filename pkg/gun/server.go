package gun

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gungo/internal/dam"
	"gungo/internal/transport"
)

// Handler builds the gin router a super peer exposes: a WebSocket
// upgrade endpoint for inbound peer links and a small stats endpoint,
// mirroring the teacher's gin.New()-plus-route-groups style
// (internal/api/handlers.go) repurposed from a KV HTTP API to a mesh
// relay.
func (g *Gun) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/gun", g.handleUpgrade)
	r.GET("/gun/stats", g.handleStats)
	return r
}

func (g *Gun) handleUpgrade(c *gin.Context) {
	peerID := c.Query("id")
	if peerID == "" {
		peerID = uuid.NewString()
	}

	peer, err := transport.Accept(c.Writer, c.Request, peerID, g.log)
	if err != nil {
		g.log.WithError(err).Warn("gun: websocket upgrade failed")
		return
	}

	g.router.AddPeer(peer)
	defer g.router.RemovePeer(peerID)

	_ = peer.Run(func(fromPeer string, env *dam.Envelope) {
		if err := g.router.HandleInbound(fromPeer, env); err != nil {
			g.log.WithError(err).Warn("gun: inbound envelope rejected")
		}
	})
}

func (g *Gun) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"souls": len(g.store.Keys()),
	})
}
