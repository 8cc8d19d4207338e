package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func eventEncoder() zapcore.Encoder {
	enccoderConfig := zap.NewProductionEncoderConfig()
	enccoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	enccoderConfig.StacktraceKey = ""
	enccoderConfig.CallerKey = ""
	return zapcore.NewJSONEncoder(enccoderConfig)
}

func newFileLogger(fileName string) (*zap.Logger, error) {
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return newLogger(zapcore.AddSync(logFile)), nil
}

func newStdoutLogger() *zap.Logger {
	return newLogger(zapcore.Lock(os.Stdout))
}

func newLogger(writer zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(eventEncoder(), writer, zapcore.InfoLevel)
	return zap.New(core)
}
