package main

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lixenwraith/vi-motion/config"
	"github.com/lixenwraith/vi-motion/logger"
)

const (
	logDir       = "logs"
	logFileName  = "vi-motion.log"
	maxLogSizeMB = 10
)

// setupLogging routes logs to a rotated file under dir; the terminal owns stdout and stderr
// Without debug every log call is discarded
func setupLogging(cfg config.Log, debug bool, dir string) (*zap.Logger, func() error, error) {
	if !debug {
		return zap.NewNop(), func() error { return nil }, nil
	}

	cfg.Level = "debug"
	cfg.Output = filepath.Join(dir, logFileName)
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = maxLogSizeMB
	}
	return logger.New(cfg)
}
