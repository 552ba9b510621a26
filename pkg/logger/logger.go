package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger with application defaults.
type Logger struct {
	*zap.Logger
}

// New creates a new Logger with the given level and encoding ("json" or "console").
func New(level, encoding string) (*Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{zapLogger}, nil
}

// Field creates a generic structured log field.
func Field(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

// StringField creates a string log field.
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField creates an int log field.
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Float64Field creates a float64 log field.
func Float64Field(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}

// ErrorField creates an error log field.
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}
