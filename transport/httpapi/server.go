// Package httpapi is the gin-based HTTP transport mounting the JSON-RPC
// method table (transport/jsonrpc) over a single /rpc endpoint plus the
// well-known Agent Card path (spec.md §6). Grounded on the teacher pack's
// gin-based API server shape (codeready-toolchain-tarsy's
// pkg/api/handlers.go: gin.Context handlers, ShouldBindJSON request
// decoding, gin.H JSON error bodies) adapted from tarsy's bespoke
// alert/session endpoints to this module's single JSON-RPC dispatch route.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/orchestrator/telemetry"
	"github.com/agentfleet/orchestrator/transport/jsonrpc"
)

// Server wraps a gin.Engine serving the JSON-RPC surface.
type Server struct {
	engine     *gin.Engine
	dispatcher *jsonrpc.Dispatcher
	logger     telemetry.Logger
}

// New constructs a Server. logger may be nil.
func New(dispatcher *jsonrpc.Dispatcher, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	s := &Server{engine: gin.New(), dispatcher: dispatcher, logger: logger}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Engine returns the underlying gin.Engine, for callers that need to add
// middleware or serve it themselves (testing, TLS termination).
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) routes() {
	s.engine.POST("/rpc", s.handleRPC)
	s.engine.GET("/.well-known/agent-card.json", s.handleAgentCard)
}

// handleRPC dispatches one JSON-RPC request. message/sendStream is framed
// as Server-Sent Events (spec.md §6 "Streaming transport"); every other
// method returns a single JSON body.
func (s *Server) handleRPC(c *gin.Context) {
	var req jsonrpc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"jsonrpc": "2.0",
			"error":   gin.H{"code": jsonrpc.CodeParseError, "message": "parse error: " + err.Error()},
		})
		return
	}

	if s.dispatcher.IsStreamingMethod(req.Method) {
		s.streamRPC(c, req)
		return
	}

	resp := s.dispatcher.Dispatch(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) streamRPC(c *gin.Context, req jsonrpc.Request) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported by this response writer"})
		return
	}

	s.dispatcher.DispatchStream(c.Request.Context(), req, func(resp *jsonrpc.Response) bool {
		c.SSEvent("message", resp)
		flusher.Flush()
		select {
		case <-c.Request.Context().Done():
			return false
		default:
			return true
		}
	})
}

func (s *Server) handleAgentCard(c *gin.Context) {
	resp := s.dispatcher.Dispatch(c.Request.Context(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodAgentCard})
	if resp.Error != nil {
		c.JSON(http.StatusInternalServerError, resp.Error)
		return
	}
	c.JSON(http.StatusOK, resp.Result)
}
