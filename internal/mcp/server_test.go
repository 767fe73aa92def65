package mcp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"todoManager/internal/mcp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer() *mcp.Server {
	s := mcp.NewServer("todo-list-manager", "1.0.0")
	s.Register(mcp.Tool{
		Name:        "echo",
		Description: "Echo arguments",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}, func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
		return mcp.TextResult(string(args))
	})
	return s
}

func decodeResponse(t *testing.T, resp *mcp.Response) map[string]any {
	t.Helper()
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

// TestServer_HandleMessage тестирует разбор методов протокола
func TestServer_HandleMessage(t *testing.T) {
	ctx := context.Background()
	s := echoServer()

	tests := []struct {
		name      string
		message   string
		checkResp func(t *testing.T, resp map[string]any)
	}{
		{
			name:    "initialize echoes protocol version",
			message: `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"test"}}}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				result := resp["result"].(map[string]any)
				assert.Equal(t, "2025-03-26", result["protocolVersion"])
				assert.Equal(t, "todo-list-manager", result["serverInfo"].(map[string]any)["name"])
				assert.Contains(t, result["capabilities"], "tools")
				assert.Equal(t, float64(1), resp["id"])
			},
		},
		{
			name:    "initialize without params uses default version",
			message: `{"jsonrpc":"2.0","id":"init","method":"initialize"}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				result := resp["result"].(map[string]any)
				assert.Equal(t, mcp.ProtocolVersion, result["protocolVersion"])
				assert.Equal(t, "init", resp["id"])
			},
		},
		{
			name:    "ping",
			message: `{"jsonrpc":"2.0","id":2,"method":"ping"}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, map[string]any{}, resp["result"])
				assert.NotContains(t, resp, "error")
			},
		},
		{
			name:    "tools/list",
			message: `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				tools := resp["result"].(map[string]any)["tools"].([]any)
				require.Len(t, tools, 1)
				tool := tools[0].(map[string]any)
				assert.Equal(t, "echo", tool["name"])
				assert.Equal(t, map[string]any{"type": "object"}, tool["inputSchema"])
			},
		},
		{
			name:    "tools/call",
			message: `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{"a":1}}}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				result := resp["result"].(map[string]any)
				assert.Equal(t, false, result["isError"])
				content := result["content"].([]any)[0].(map[string]any)
				assert.Equal(t, "text", content["type"])
				assert.JSONEq(t, `{"a":1}`, content["text"].(string))
			},
		},
		{
			name:    "tools/call unknown tool",
			message: `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				result := resp["result"].(map[string]any)
				assert.Equal(t, true, result["isError"])
				content := result["content"].([]any)[0].(map[string]any)
				assert.Equal(t, "Error: Unknown tool 'nope'", content["text"])
			},
		},
		{
			name:    "tools/call without name",
			message: `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{}}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeInvalidParams), resp["error"].(map[string]any)["code"])
			},
		},
		{
			name:    "tools/call with malformed params",
			message: `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":[1,2]}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeInvalidParams), resp["error"].(map[string]any)["code"])
			},
		},
		{
			name:    "unknown method",
			message: `{"jsonrpc":"2.0","id":8,"method":"resources/list"}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeMethodNotFound), resp["error"].(map[string]any)["code"])
				assert.Equal(t, float64(8), resp["id"])
			},
		},
		{
			name:    "batch array is invalid request",
			message: `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeInvalidRequest), resp["error"].(map[string]any)["code"])
				assert.Nil(t, resp["id"])
			},
		},
		{
			name:    "scalar is invalid request",
			message: `42`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeInvalidRequest), resp["error"].(map[string]any)["code"])
			},
		},
		{
			name:    "wrong field type is invalid request",
			message: `{"jsonrpc":"2.0","id":9,"method":7}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeInvalidRequest), resp["error"].(map[string]any)["code"])
			},
		},
		{
			name:    "explicit null id gets a response",
			message: `{"jsonrpc":"2.0","id":null,"method":"ping"}`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Contains(t, resp, "id")
				assert.Nil(t, resp["id"])
				assert.Equal(t, map[string]any{}, resp["result"])
			},
		},
		{
			name:    "parse error",
			message: `{"jsonrpc":"2.0","id":`,
			checkResp: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, float64(mcp.CodeParseError), resp["error"].(map[string]any)["code"])
				assert.Nil(t, resp["id"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.HandleMessage(ctx, []byte(tt.message))
			require.NotNil(t, resp)
			tt.checkResp(t, decodeResponse(t, resp))
		})
	}
}

// TestServer_Notifications тестирует, что на уведомления нет ответа
func TestServer_Notifications(t *testing.T) {
	s := echoServer()

	assert.Nil(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	assert.Nil(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list"}`)))
}

// TestServer_Middleware тестирует порядок middleware и имя инструмента в контексте
func TestServer_Middleware(t *testing.T) {
	s := echoServer()
	var order []string
	trace := func(label string) mcp.Middleware {
		return func(next mcp.ToolHandler) mcp.ToolHandler {
			return func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
				order = append(order, label+":"+mcp.ToolName(ctx))
				return next(ctx, args)
			}
		}
	}
	s.Use(trace("outer"), trace("inner"))

	res := s.CallTool(context.Background(), "echo", json.RawMessage(`{}`))
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"outer:echo", "inner:echo"}, order)

	order = nil
	res = s.CallTool(context.Background(), "missing", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, []string{"outer:missing", "inner:missing"}, order)
}

// TestServer_Register тестирует повторную регистрацию
func TestServer_Register(t *testing.T) {
	s := echoServer()
	s.Register(mcp.Tool{Name: "second"}, func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
		return mcp.TextResult("2")
	})
	s.Register(mcp.Tool{Name: "echo", Description: "replaced"}, func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
		return mcp.TextResult("replaced")
	})

	tools := s.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "replaced", tools[0].Description)
	assert.Equal(t, "replaced", s.CallTool(context.Background(), "echo", nil).Text())
}

// TestServer_Serve тестирует обмен по строкам
func TestServer_Serve(t *testing.T) {
	s := echoServer()
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"n":2}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	err := s.Serve(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var ids []float64
	for scanner.Scan() {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		assert.Equal(t, "2.0", resp["jsonrpc"])
		ids = append(ids, resp["id"].(float64))
	}
	assert.Equal(t, []float64{1, 2, 3}, ids)
}

// TestServer_ServeCancel тестирует остановку по контексту
func TestServer_ServeCancel(t *testing.T) {
	s := echoServer()
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, reader, io.Discard)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
