// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/agentbridge/pkg/config"
	"github.com/kadirpekel/agentbridge/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
	// DefaultLogFormat is the default log format
	DefaultLogFormat = "simple"
)

// initLogger initializes the logger, resolving each setting by
// priority: CLI flag > env var > config file > default. Log output goes
// to stderr unless a file is configured; stdout is reserved for the
// stdio transport.
func initLogger(cliLevel, cliFile, cliFormat string, cfg *config.LoggerConfig) (func(), error) {
	logLevel := firstNonEmpty(cliLevel, os.Getenv(LogLevelEnvVar), cfg.Level, "info")
	logFile := firstNonEmpty(cliFile, os.Getenv(LogFileEnvVar), cfg.File)
	logFormat := firstNonEmpty(cliFormat, os.Getenv(LogFormatEnvVar), cfg.Format, DefaultLogFormat)

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	cleanup := func() {}
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
