package handlers

import (
	"errors"

	"todoManager/internal/logger"
	"todoManager/internal/mcp"
	"todoManager/internal/service"

	"go.uber.org/zap"
)

// handleBusinessError переводит ошибку сервиса в текст результата инструмента
func handleBusinessError(err error) *mcp.ToolResult {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		logger.Error("MCP: Неизвестная ошибка сервиса", err)
		return responseWithError(err.Error())
	}

	logger.Warn("MCP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Any("details", businessErr.Details))

	return responseWithError(mapBusinessErrorToText(businessErr))
}

func mapBusinessErrorToText(businessErr *service.BusinessError) string {
	switch businessErr.Code {
	case service.CodeNotFound, service.CodeValidation:
		return businessErr.Message
	case service.CodePersistenceFailed, service.CodeDataCorrupted, service.CodeStorageUnavailable:
		if businessErr.Err != nil {
			return businessErr.Message + ": " + businessErr.Err.Error()
		}
		return businessErr.Message
	default:
		return businessErr.Error()
	}
}
