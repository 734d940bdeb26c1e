package proxy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/taro8383/duracalm-proxy/core"
)

func (s *Service) observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	status := core.ActivityStatusOK
	if err != nil {
		status = core.ActivityStatusFailed
	}

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = string(status)
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	if err != nil {
		s.logError(ctx, operation+" failed", contextFields)
	} else {
		s.logInfo(ctx, operation+" succeeded", contextFields)
	}

	s.recordActivity(ctx, operation, status, contextFields)
}

func (s *Service) recordActivity(ctx context.Context, operation string, status core.ActivityStatus, fields map[string]any) {
	if s.activity == nil {
		return
	}
	shopDomain := strings.TrimSpace(fmt.Sprint(fields["shop"]))
	if shopDomain == "<nil>" {
		shopDomain = ""
	}
	metadata := cloneFields(fields)
	delete(metadata, "shop")
	entry := core.ActivityEntry{
		Operation:  operation,
		ShopDomain: shopDomain,
		Status:     status,
		Metadata:   metadata,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.logError(ctx, "activity record failed", map[string]any{
			"operation": operation,
			"error":     err.Error(),
		})
	}
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
