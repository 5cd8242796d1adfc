package mcp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/models"
)

// Diagnoser runs a single diagnosis
type Diagnoser interface {
	Diagnose(ctx context.Context, req models.DiagnosisRequest) models.DiagnosisOutcome
	ToolDescription() string
}

// CropLister returns the current crop identifiers
type CropLister interface {
	Snapshot() []string
}

// Server dispatches JSON-RPC requests to the diagnosis tool. It holds no
// session state; every request is handled independently.
type Server struct {
	toolName  string
	diagnoser Diagnoser
	crops     CropLister
	logger    *zap.Logger
}

// NewServer creates a Server exposing diagnoser under toolName
func NewServer(toolName string, diagnoser Diagnoser, crops CropLister, logger *zap.Logger) *Server {
	return &Server{
		toolName:  toolName,
		diagnoser: diagnoser,
		crops:     crops,
		logger:    logger,
	}
}

// Handle decodes one JSON-RPC message and returns the response to send.
// It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, body []byte) *Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Debug("unparseable JSON-RPC message", zap.Error(err))
		return errorResponse(nil, CodeParseError, "Parse error")
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid Request")
	}

	if req.IsNotification() {
		s.logger.Debug("notification received", zap.String("method", req.Method))
		return nil
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, s.initialize())
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return resultResponse(req.ID, s.ListTools())
	case "tools/call":
		return s.handleToolsCall(ctx, &req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) initialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
	}
}

// ListTools returns the tool definitions with the crop enum taken from the
// current catalog snapshot
func (s *Server) ListTools() ToolsListResult {
	return ToolsListResult{
		Tools: []Tool{{
			Name:        s.toolName,
			Description: s.diagnoser.ToolDescription(),
			InputSchema: DiagnoseInputSchema(s.crops.Snapshot()),
		}},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if len(req.Params) == 0 {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}
	if params.Name != s.toolName {
		return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	var args models.DiagnosisRequest
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid arguments: image and crop must be strings")
		}
	}

	outcome := s.diagnoser.Diagnose(ctx, args)
	return resultResponse(req.ID, TextResult(outcome.Text(), !outcome.Succeeded()))
}
