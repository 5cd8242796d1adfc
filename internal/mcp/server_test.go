package mcp

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/models"
)

type stubDiagnoser struct {
	outcome models.DiagnosisOutcome
	got     *models.DiagnosisRequest
}

func (d *stubDiagnoser) Diagnose(_ context.Context, req models.DiagnosisRequest) models.DiagnosisOutcome {
	d.got = &req
	return d.outcome
}

func (d *stubDiagnoser) ToolDescription() string {
	return "Diagnose plant health from a photo."
}

type stubCrops []string

func (c stubCrops) Snapshot() []string { return c }

func newTestServer(d *stubDiagnoser, crops []string) *Server {
	return NewServer("diagnose_plant_health", d, stubCrops(crops), zap.NewNop())
}

// roundTrip encodes the response the way the HTTP layer does and decodes it
// into a generic map
func roundTrip(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	data, err := Encode(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func TestHandle_Initialize(t *testing.T) {
	s := newTestServer(&stubDiagnoser{}, nil)

	resp := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	result, ok := resp.Result.(InitializeResult)
	if !ok {
		t.Fatalf("expected InitializeResult, got %T", resp.Result)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("expected protocol %s, got %s", ProtocolVersion, result.ProtocolVersion)
	}
	if result.ServerInfo.Name != ServerName {
		t.Errorf("expected server name %s, got %s", ServerName, result.ServerInfo.Name)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability")
	}
}

func TestHandle_EchoesID(t *testing.T) {
	s := newTestServer(&stubDiagnoser{}, nil)

	tests := []struct {
		body string
		want any
	}{
		{`{"jsonrpc":"2.0","id":7,"method":"ping"}`, float64(7)},
		{`{"jsonrpc":"2.0","id":"abc","method":"ping"}`, "abc"},
	}
	for _, tt := range tests {
		out := roundTrip(t, s.Handle(context.Background(), []byte(tt.body)))
		if out["id"] != tt.want {
			t.Errorf("expected id %v, got %v", tt.want, out["id"])
		}
		if out["jsonrpc"] != "2.0" {
			t.Errorf("expected jsonrpc 2.0, got %v", out["jsonrpc"])
		}
	}
}

func TestHandle_Notification(t *testing.T) {
	s := newTestServer(&stubDiagnoser{}, nil)

	if resp := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); resp != nil {
		t.Errorf("expected no response for notification, got %+v", resp)
	}
}

func TestHandle_Errors(t *testing.T) {
	s := newTestServer(&stubDiagnoser{}, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"jsonrpc":`, CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, CodeInvalidRequest},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, CodeMethodNotFound},
		{"unknown tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"identify_pest"}}`, CodeInvalidParams},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`, CodeInvalidParams},
		{"non-string crop", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"diagnose_plant_health","arguments":{"image":"x","crop":["maize"]}}}`, CodeInvalidParams},
		{"non-string image", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"diagnose_plant_health","arguments":{"image":42}}}`, CodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Handle(context.Background(), []byte(tt.body))
			if resp == nil || resp.Error == nil {
				t.Fatalf("expected error response, got %+v", resp)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("expected code %d, got %d (%s)", tt.code, resp.Error.Code, resp.Error.Message)
			}
			if resp.Result != nil {
				t.Error("error response must not carry a result")
			}
		})
	}
}

func TestHandle_ParseErrorHasNullID(t *testing.T) {
	s := newTestServer(&stubDiagnoser{}, nil)

	out := roundTrip(t, s.Handle(context.Background(), []byte(`not json`)))
	if id, ok := out["id"]; !ok || id != nil {
		t.Errorf("expected null id, got %v (present=%v)", id, ok)
	}
}

func TestHandle_ToolsList(t *testing.T) {
	crops := make([]string, 150)
	for i := range crops {
		crops[i] = fmt.Sprintf("crop_%03d", i)
	}
	s := newTestServer(&stubDiagnoser{}, crops)

	resp := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	result, ok := resp.Result.(ToolsListResult)
	if !ok {
		t.Fatalf("expected ToolsListResult, got %T", resp.Result)
	}
	if len(result.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result.Tools))
	}
	tool := result.Tools[0]
	if tool.Name != "diagnose_plant_health" {
		t.Errorf("unexpected tool name %s", tool.Name)
	}
	if tool.Description == "" {
		t.Error("expected tool description")
	}

	props := tool.InputSchema["properties"].(map[string]any)
	enum := props["crop"].(map[string]any)["enum"].([]string)
	if len(enum) != maxCropEnum {
		t.Errorf("expected %d enum values, got %d", maxCropEnum, len(enum))
	}
	if enum[0] != "crop_000" || enum[99] != "crop_099" {
		t.Errorf("expected the first catalog ids in order, got %s..%s", enum[0], enum[99])
	}
}

func TestDiagnoseInputSchema_EmptyCatalog(t *testing.T) {
	schema := DiagnoseInputSchema(nil)

	props := schema["properties"].(map[string]any)
	if _, ok := props["crop"].(map[string]any)["enum"]; ok {
		t.Error("empty catalog should not constrain crop")
	}
	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "image" {
		t.Errorf("expected image to be the only required field, got %v", required)
	}
}

func TestDiagnoseInputSchema_DoesNotAliasCatalog(t *testing.T) {
	crops := []string{"maize", "rice"}
	schema := DiagnoseInputSchema(crops)
	crops[0] = "changed"

	enum := schema["properties"].(map[string]any)["crop"].(map[string]any)["enum"].([]string)
	if enum[0] != "maize" {
		t.Error("schema enum should be a copy of the catalog")
	}
}

func TestHandle_ToolsCall(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.DiagnosisOutcome
		isError bool
		text    string
	}{
		{"success", models.Success("Healthy"), false, "Healthy"},
		{"failure", models.Failed(models.NewFailure(models.FailureInvalidInput, "Invalid input: no image provided")), true, "Invalid input: no image provided"},
		{"quota", models.Failed(models.NewFailure(models.FailureUpstreamQuotaExceeded, "try later")), true, "try later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDiagnoser{outcome: tt.outcome}
			s := newTestServer(d, nil)

			body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"diagnose_plant_health","arguments":{"image":"data:image/png;base64,AAAA","crop":"maize"}}}`
			resp := s.Handle(context.Background(), []byte(body))
			if resp.Error != nil {
				t.Fatalf("unexpected rpc error: %v", resp.Error)
			}
			result, ok := resp.Result.(ToolCallResult)
			if !ok {
				t.Fatalf("expected ToolCallResult, got %T", resp.Result)
			}
			if result.IsError != tt.isError {
				t.Errorf("expected isError=%v, got %v", tt.isError, result.IsError)
			}
			if len(result.Content) != 1 || result.Content[0].Type != "text" || result.Content[0].Text != tt.text {
				t.Errorf("unexpected content %+v", result.Content)
			}
			if d.got == nil || d.got.Crop != "maize" || !strings.HasPrefix(d.got.Image, "data:image/png") {
				t.Errorf("arguments not passed through: %+v", d.got)
			}
		})
	}
}

func TestHandle_ToolsCallWithoutArguments(t *testing.T) {
	d := &stubDiagnoser{outcome: models.Failed(models.NewFailure(models.FailureInvalidInput, "Invalid input: no image provided"))}
	s := newTestServer(d, nil)

	resp := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"diagnose_plant_health"}}`))
	if resp.Error != nil {
		t.Fatalf("missing arguments should reach the tool, got rpc error %v", resp.Error)
	}
	if d.got == nil || d.got.Image != "" {
		t.Errorf("expected empty image to be forwarded, got %+v", d.got)
	}
}

func TestToolCallResult_IsErrorAlwaysEncoded(t *testing.T) {
	data, err := json.Marshal(TextResult("ok", false))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"isError":false`) {
		t.Errorf("expected isError in %s", data)
	}
}
