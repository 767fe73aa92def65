package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"todoManager/internal/logger"
	"todoManager/internal/mcp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const RequestIdKey contextKey = "request_id"

// RequestID присваивает каждому вызову инструмента собственный id
func RequestID(next mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
		requestId := GetRequestID(ctx)
		if requestId == "" {
			requestId = uuid.New().String()
		}

		ctx = context.WithValue(ctx, RequestIdKey, requestId)
		return next(ctx, args)
	}
}

func Logging(next mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
		start := time.Now()
		requestId := GetRequestID(ctx)
		tool := mcp.ToolName(ctx)

		logger.Info(
			"MCP_IN: Вызов инструмента",
			zap.String("request_id", requestId),
			zap.String("tool", tool),
			zap.Int("args_bytes", len(args)),
		)

		res := next(ctx, args)

		logLevel := zap.InfoLevel
		if res == nil || res.IsError {
			logLevel = zap.WarnLevel
		}
		fields := []zap.Field{
			zap.String("request_id", requestId),
			zap.String("tool", tool),
			zap.Duration("ms", time.Since(start)),
		}
		if res != nil {
			fields = append(fields, zap.Bool("is_error", res.IsError))
			if res.IsError {
				fields = append(fields, zap.String("result", res.Text()))
			}
		}
		logger.Log(logLevel, "MCP_OUT: Завершение вызова", fields...)

		return res
	}
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIdKey).(string); ok {
		return id
	}
	return ""
}

type toolCounter struct {
	count   int
	resetAt time.Time
}

// RateLimit ограничивает число вызовов каждого инструмента в минуту. rpm <= 0 отключает ограничение.
func RateLimit(rpm int) mcp.Middleware {
	counters := make(map[string]*toolCounter)
	var mtx sync.Mutex
	window := time.Minute

	return func(next mcp.ToolHandler) mcp.ToolHandler {
		if rpm <= 0 {
			return next
		}
		return func(ctx context.Context, args json.RawMessage) *mcp.ToolResult {
			tool := mcp.ToolName(ctx)
			now := time.Now()

			mtx.Lock()

			info, exists := counters[tool]
			if !exists {
				info = &toolCounter{
					count:   1,
					resetAt: now.Add(window),
				}
				counters[tool] = info
			} else if now.After(info.resetAt) {
				// новое окно
				info.count = 1
				info.resetAt = now.Add(window)
			} else {
				if info.count >= rpm {
					retryAfter := int(info.resetAt.Sub(now).Seconds()) + 1
					mtx.Unlock()

					logger.Warn("MCP: Превышен лимит вызовов",
						zap.String("request_id", GetRequestID(ctx)),
						zap.String("tool", tool),
						zap.Int("rpm", rpm))
					return mcp.ErrorResult(fmt.Sprintf("Error: rate limit exceeded for tool '%s', retry in %ds", tool, retryAfter))
				}
				info.count++
			}

			mtx.Unlock()

			return next(ctx, args)
		}
	}
}
