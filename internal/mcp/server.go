package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"todoManager/internal/logger"

	"go.uber.org/zap"
)

// ToolHandler обрабатывает вызов инструмента. Ошибки предметной области возвращаются
// в результате с IsError, а не как ошибка протокола.
type ToolHandler func(ctx context.Context, args json.RawMessage) *ToolResult

type Middleware func(next ToolHandler) ToolHandler

type contextKey string

const toolNameKey contextKey = "tool_name"

func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey, name)
}

func ToolName(ctx context.Context) string {
	if name, ok := ctx.Value(toolNameKey).(string); ok {
		return name
	}
	return ""
}

type Server struct {
	info        ServerInfo
	mtx         sync.RWMutex
	tools       []Tool
	handlers    map[string]ToolHandler
	middlewares []Middleware
}

func NewServer(name, version string) *Server {
	return &Server{
		info:     ServerInfo{Name: name, Version: version},
		handlers: make(map[string]ToolHandler),
	}
}

// Register добавляет инструмент; повторная регистрация заменяет обработчик, сохраняя порядок
func (s *Server) Register(tool Tool, handler ToolHandler) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, exists := s.handlers[tool.Name]; exists {
		for i := range s.tools {
			if s.tools[i].Name == tool.Name {
				s.tools[i] = tool
			}
		}
	} else {
		s.tools = append(s.tools, tool)
	}
	s.handlers[tool.Name] = handler
}

// Use добавляет middleware; первая добавленная оказывается внешней
func (s *Server) Use(middlewares ...Middleware) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.middlewares = append(s.middlewares, middlewares...)
}

func (s *Server) Tools() []Tool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]Tool, len(s.tools))
	copy(res, s.tools)
	return res
}

func (s *Server) CallTool(ctx context.Context, name string, args json.RawMessage) *ToolResult {
	s.mtx.RLock()
	handler, ok := s.handlers[name]
	middlewares := s.middlewares
	s.mtx.RUnlock()

	if !ok {
		handler = func(ctx context.Context, args json.RawMessage) *ToolResult {
			return ErrorResult(fmt.Sprintf("Error: Unknown tool '%s'", name))
		}
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	return handler(WithToolName(ctx, name), args)
}

// Serve читает запросы построчно и обрабатывает их по одному в порядке поступления.
// Возвращает nil при EOF или отмене контекста.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	type line struct {
		data []byte
		err  error
	}
	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)

	go func() {
		reader := bufio.NewReader(r)
		for {
			data, err := reader.ReadBytes('\n')
			select {
			case lines <- line{data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	out := bufio.NewWriter(w)
	logger.Info("MCP: Сервер запущен", zap.String("name", s.info.Name), zap.String("version", s.info.Version))

	for {
		select {
		case <-ctx.Done():
			logger.Info("MCP: Сервер остановлен", zap.Error(ctx.Err()))
			return nil
		case l := <-lines:
			if len(bytes.TrimSpace(l.data)) > 0 {
				if resp := s.HandleMessage(ctx, l.data); resp != nil {
					if err := writeResponse(out, resp); err != nil {
						logger.Error("MCP: Не удалось отправить ответ", err)
						return fmt.Errorf("write response: %w", err)
					}
				}
			}
			if l.err != nil {
				if errors.Is(l.err, io.EOF) {
					logger.Info("MCP: Входной поток закрыт")
					return nil
				}
				logger.Error("MCP: Ошибка чтения", l.err)
				return fmt.Errorf("read request: %w", l.err)
			}
		}
	}
}

func writeResponse(w *bufio.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.Flush()
}

// HandleMessage обрабатывает одно сообщение; для уведомлений возвращает nil
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		logger.Warn("MCP: Некорректный JSON", zap.Int("size", len(data)))
		return errorResponse(nil, CodeParseError, "Parse error")
	}
	// пакеты (batch) и скаляры не поддерживаются
	if data[0] != '{' {
		logger.Warn("MCP: Сообщение не является объектом")
		return errorResponse(nil, CodeInvalidRequest, "Invalid Request")
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn("MCP: Некорректный запрос", zap.Error(err))
		return errorResponse(nil, CodeInvalidRequest, "Invalid Request")
	}
	if req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid Request")
	}

	logger.Debug("MCP: Запрос", zap.String("method", req.Method), zap.ByteString("id", req.ID))

	if req.IsNotification() {
		// notifications/initialized и прочие уведомления ответа не требуют
		return nil
	}

	result, rpcErr := s.dispatch(ctx, &req)
	if rpcErr != nil {
		logger.Warn("MCP: Ошибка запроса",
			zap.String("method", req.Method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message))
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: rpcErr}
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case MethodInitialize:
		var params InitializeParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		version := params.ProtocolVersion
		if version == "" {
			version = ProtocolVersion
		}
		logger.Info("MCP: Инициализация",
			zap.String("client", params.ClientInfo.Name),
			zap.String("protocol_version", version))
		return &InitializeResult{
			ProtocolVersion: version,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      s.info,
		}, nil

	case MethodPing:
		return map[string]any{}, nil

	case MethodToolsList:
		return &ListToolsResult{Tools: s.Tools()}, nil

	case MethodToolsCall:
		var params CallToolParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if params.Name == "" {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: tool name is required"}
		}
		return s.CallTool(ctx, params.Name, params.Arguments), nil

	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}
}

func decodeParams(raw json.RawMessage, v any) *RPCError {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
	}
	return nil
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
