// Package mcp implements the JSON-RPC 2.0 surface of the Model Context
// Protocol for the plant diagnosis tool.
package mcp

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	jsonRPCVersion = "2.0"

	// ProtocolVersion is the MCP revision this server speaks
	ProtocolVersion = "2024-11-05"

	ServerName    = "agrivision-mcp-server"
	ServerVersion = "1.0.0"
)

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// Request is a JSON-RPC 2.0 request. A request without an id is a notification.
type Request struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id,omitempty"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the caller expects no response
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response. ID echoes the request id verbatim so
// both string and numeric ids round-trip.
type Response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Result  any                 `json:"result,omitempty"`
	Error   *RPCError           `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// ServerCapabilities describes what the server supports.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates tools support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// InitializeResult is returned from the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerInfo identifies the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Tool is a tool definition as listed by tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolsListResult is the tools/list payload
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams are the tools/call params
type ToolCallParams struct {
	Name      string              `json:"name"`
	Arguments jsoniter.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult holds the result of calling a tool.
type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// ContentItem is a piece of content in a tool result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult wraps text in a single-item tool result
func TextResult(text string, isError bool) ToolCallResult {
	return ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// Encode serialises a response. Use it instead of encoding/json so raw ids
// are written verbatim.
func Encode(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

func resultResponse(id jsoniter.RawMessage, result any) *Response {
	return &Response{JSONRPC: jsonRPCVersion, ID: responseID(id), Result: result}
}

func errorResponse(id jsoniter.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      responseID(id),
		Error:   &RPCError{Code: code, Message: message},
	}
}

// responseID substitutes null when the request id could not be read
func responseID(id jsoniter.RawMessage) jsoniter.RawMessage {
	if len(id) == 0 {
		return jsoniter.RawMessage("null")
	}
	return id
}
