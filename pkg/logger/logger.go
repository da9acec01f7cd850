package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loggers holds one zap logger per log category.
type Loggers struct {
	Error    *zap.Logger
	Audit    *zap.Logger
	Request  *zap.Logger
	Security *zap.Logger
	System   *zap.Logger
}

func encoderConfig() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderCfg
}

func newLogger(ws zapcore.WriteSyncer, category string, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		ws,
		level,
	)
	return zap.New(core).With(zap.String("category", category))
}

func openFile(dir, name string) (zapcore.WriteSyncer, error) {
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(file), nil
}

// New builds the logger set. With an empty dir every category writes to
// stdout, otherwise each category gets its own file inside dir.
func New(dir string) (*Loggers, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	stdout := zapcore.Lock(os.Stdout)
	build := func(category, file string, level zapcore.Level) (*zap.Logger, error) {
		if dir == "" {
			return newLogger(stdout, category, level), nil
		}
		ws, err := openFile(dir, file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file, err)
		}
		return newLogger(ws, category, level), nil
	}

	var (
		l   Loggers
		err error
	)
	if l.Error, err = build("error", "errors.log", zapcore.ErrorLevel); err != nil {
		return nil, err
	}
	if l.Audit, err = build("audit", "audit.log", zapcore.InfoLevel); err != nil {
		return nil, err
	}
	if l.Request, err = build("request", "request.log", zapcore.InfoLevel); err != nil {
		return nil, err
	}
	if l.Security, err = build("security", "security.log", zapcore.WarnLevel); err != nil {
		return nil, err
	}
	if l.System, err = build("system", "system.log", zapcore.InfoLevel); err != nil {
		return nil, err
	}
	return &l, nil
}

// NewNop returns loggers that discard everything.
func NewNop() *Loggers {
	nop := zap.NewNop()
	return &Loggers{
		Error:    nop,
		Audit:    nop,
		Request:  nop,
		Security: nop,
		System:   nop,
	}
}

func (l *Loggers) Sync() {
	_ = l.Error.Sync()
	_ = l.Audit.Sync()
	_ = l.Request.Sync()
	_ = l.Security.Sync()
	_ = l.System.Sync()
}
