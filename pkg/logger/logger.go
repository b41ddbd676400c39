package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Defaults to a no-op logger so packages that log during tests don't need Init.
var (
	Log   = zap.NewNop()
	Sugar = Log.Sugar()
)

// Init initializes the global logger configuration.
func Init() {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	// Custom JSON config
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	writer := zapcore.AddSync(os.Stdout)

	core := zapcore.NewCore(encoder, writer, zapcore.InfoLevel)

	Log = zap.New(core, zap.AddCaller())
	Sugar = Log.Sugar()
}
