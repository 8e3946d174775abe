package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type Logger struct {
	MinLevel string
	Output   io.Writer
}

func CreateLogger(minLevel string) *Logger {
	return &Logger{
		MinLevel: minLevel,
		Output:   os.Stdout,
	}
}

func shouldLog(minLevel, level string) bool {
	return LogLevels[strings.ToUpper(minLevel)] >= LogLevels[strings.ToUpper(level)]
}

func (logger *Logger) Log(level string, format string, a ...interface{}) {
	if !shouldLog(logger.MinLevel, level) {
		return
	}

	currentTime := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(logger.Output, "%s [%s] [google-auth] %s\n", currentTime, level, fmt.Sprintf(format, a...))
}
