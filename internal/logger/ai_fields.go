package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the ranking model provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the ranking model identifier.
	FieldModel = "ai_model"
	// FieldEmbedder is the structured log field key for the embedding backend name.
	FieldEmbedder = "embedder"
	// FieldRequestID is the structured log field key for a single recommendation request.
	FieldRequestID = "request_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced by a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the model provider and model.
// Empty values are ignored to keep log entries compact when information is missing.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common provider fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// WithEmbedder attaches the embedding backend name and its vector dimension.
func WithEmbedder(logger *zap.Logger, name string, dimension int) *zap.Logger {
	fields := StringFields(StringField{Key: FieldEmbedder, Value: name})
	if dimension > 0 {
		fields = append(fields, zap.Int("dimension", dimension))
	}
	return WithFields(logger, fields...)
}
