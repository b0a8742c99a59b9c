package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(lvl)
	switch format {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return logger, nil
}
