package telemetry

import (
	"context"
	"fmt"
	"log"

	"replicamgr/logging"
)

// Logger exposes the logging capability required by core components,
// grounded on the teacher's telemetry.Logger
// (internal/telemetry/interfaces.go).
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts a function into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// PublishLogger adapts a logging.Publisher into a Logger by emitting a
// structured system-category event for every Printf call, so callers
// that only know how to format strings still end up on the router.
func PublishLogger(pub logging.Publisher, actor logging.EntityRef) Logger {
	return &publishAdapter{pub: pub, actor: actor}
}

type publishAdapter struct {
	pub   logging.Publisher
	actor logging.EntityRef
}

func (l *publishAdapter) Printf(format string, args ...any) {
	if l == nil || l.pub == nil {
		return
	}
	l.pub.Publish(context.Background(), logging.Event{
		Type:     "log",
		Actor:    l.actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  fmt.Sprintf(format, args...),
	})
}
