package handlers

import (
	"encoding/json"
	"fmt"

	"todoManager/internal/logger"
	"todoManager/internal/mcp"
)

// responseWithJSON - результат с JSON-представлением payload, отступ 2 пробела
func responseWithJSON(payload any) *mcp.ToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Error("MCP: Не удалось сериализовать ответ", err)
		return responseWithError(fmt.Sprintf("failed to render response: %v", err))
	}
	return mcp.TextResult(string(data))
}

func responseWithText(text string) *mcp.ToolResult {
	return mcp.TextResult(text)
}

func responseWithError(message string) *mcp.ToolResult {
	return mcp.ErrorResult("Error: " + message)
}
