package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lixenwraith/vi-motion/config"
)

// New builds a zap logger from cfg
// The returned close function flushes and releases a log file; it is safe to call on stream outputs
func New(cfg config.Log) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch cfg.Format {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	var (
		sink      zapcore.WriteSyncer
		closeFile = func() error { return nil }
	)
	switch cfg.Output {
	case "", "stderr":
		sink = zapcore.Lock(os.Stderr)
	case "stdout":
		sink = zapcore.Lock(os.Stdout)
	default:
		f, err := OpenFile(cfg.Output, int64(cfg.MaxSizeMB)*1024*1024, time.Now())
		if err != nil {
			return nil, nil, err
		}
		sink = zapcore.AddSync(f)
		closeFile = f.Close
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	log := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return log, func() error {
		_ = log.Sync()
		return closeFile()
	}, nil
}

// OpenFile opens path for appending, creating its directory
// An existing file larger than maxSize is first renamed with a timestamp suffix; maxSize 0 disables rotation
func OpenFile(path string, maxSize int64, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil && maxSize > 0 && info.Size() > maxSize {
		ext := filepath.Ext(path)
		rotated := strings.TrimSuffix(path, ext) + "." + now.Format("20060102-150405") + ext
		if err := os.Rename(path, rotated); err != nil {
			return nil, fmt.Errorf("rotate log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return f, nil
}
