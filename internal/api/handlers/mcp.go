package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/mcp"
)

type MCPHandler struct {
	server       *mcp.Server
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewMCPHandler creates the JSON-RPC endpoint handler. maxBodyBytes bounds the
// request body; it must leave room for an image above the configured ceiling
// so oversized images still get a TooLarge tool result.
func NewMCPHandler(server *mcp.Server, maxBodyBytes int64, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		server:       server,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleRPC processes one JSON-RPC message
func (h *MCPHandler) HandleRPC(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		h.logger.Warn("failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	resp := h.server.Handle(c.Request.Context(), body)
	if resp == nil {
		c.Status(http.StatusAccepted)
		return
	}

	data, err := mcp.Encode(resp)
	if err != nil {
		h.logger.Error("failed to encode JSON-RPC response", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode response"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
