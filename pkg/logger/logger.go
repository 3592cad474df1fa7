// Package logger provides component-tagged structured logging on top of logrus.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown names
// fall back to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

var (
	mu      sync.RWMutex
	backend = newBackend(os.Stderr, false)
	level   = INFO
)

func newBackend(out io.Writer, jsonFormat bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	if jsonFormat {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// Configure replaces the output and formatter of the package logger.
func Configure(out io.Writer, jsonFormat bool) {
	mu.Lock()
	defer mu.Unlock()
	backend = newBackend(out, jsonFormat)
}

func SetLevel(l LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

func logMessage(l LogLevel, component, message string, fields map[string]any) {
	mu.RLock()
	b, threshold := backend, level
	mu.RUnlock()
	if l < threshold {
		return
	}

	entry := logrus.NewEntry(b)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}

	switch l {
	case DEBUG:
		entry.Debug(message)
	case INFO:
		entry.Info(message)
	case WARN:
		entry.Warn(message)
	default:
		entry.Error(message)
	}
}

func Debug(message string) { logMessage(DEBUG, "", message, nil) }
func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }
func DebugF(message string, fields map[string]any) { logMessage(DEBUG, "", message, fields) }
func DebugCF(component, message string, fields map[string]any) { logMessage(DEBUG, component, message, fields) }

func Info(message string) { logMessage(INFO, "", message, nil) }
func InfoC(component, message string) { logMessage(INFO, component, message, nil) }
func InfoF(message string, fields map[string]any) { logMessage(INFO, "", message, fields) }
func InfoCF(component, message string, fields map[string]any) { logMessage(INFO, component, message, fields) }

func Warn(message string) { logMessage(WARN, "", message, nil) }
func WarnC(component, message string) { logMessage(WARN, component, message, nil) }
func WarnF(message string, fields map[string]any) { logMessage(WARN, "", message, fields) }
func WarnCF(component, message string, fields map[string]any) { logMessage(WARN, component, message, fields) }

func Error(message string) { logMessage(ERROR, "", message, nil) }
func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }
func ErrorF(message string, fields map[string]any) { logMessage(ERROR, "", message, fields) }
func ErrorCF(component, message string, fields map[string]any) { logMessage(ERROR, component, message, fields) }
