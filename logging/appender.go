package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the timestamp layout written by console and test appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000-0700"

// callerToString renders a caller as "dir/file.go:line".
func callerToString(caller *zapcore.EntryCaller) string {
	return fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(caller.File)), filepath.Base(caller.File), caller.Line)
}

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so any
// zap core (e.g. the zaptest observer) can be used as an appender.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable log lines. A `ConsoleAppender` is most
// commonly used to write to stdout.
type ConsoleAppender struct {
	io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender is a helper for creating a ConsoleAppender that writes to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a ConsoleAppender that writes to the given writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer, zapcore.NewConsoleEncoder(NewZapEncoderConfig())}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.Writer.Write(buf.Bytes())
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// appenderCore presents a set of appenders as a single `zapcore.Core` so that a zap logger can
// be handed to libraries that want one.
type appenderCore struct {
	level     zapcore.LevelEnabler
	appenders []Appender
	fields    []zapcore.Field
}

func (c *appenderCore) Enabled(level zapcore.Level) bool {
	return c.level.Enabled(level)
}

func (c *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &appenderCore{level: c.level, appenders: c.appenders, fields: merged}
}

func (c *appenderCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field{}, c.fields...), fields...)
	var firstErr error
	for _, appender := range c.appenders {
		if err := appender.Write(entry, all); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *appenderCore) Sync() error {
	for _, appender := range c.appenders {
		if err := appender.Sync(); err != nil {
			return err
		}
	}
	return nil
}
