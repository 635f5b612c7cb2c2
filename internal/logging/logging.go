// Package logging is the application logger: leveled messages printed to a
// std logger and, when a token is configured, reported to Rollbar.
package logging

import (
	"io"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"

	"github.com/Haole1945/drl-platform-sub001/internal/auth"
)

// Logger is implemented by RollbarLogger. Args may carry an error, a
// map[string]interface{} of extras, or the auth.Actor behind the call.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type Options struct {
	Token       string
	Environment string
	Host        string
	CodeVersion string
}

type RollbarLogger struct {
	std *log.Logger
}

var _ Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, opts Options) *RollbarLogger {
	rollbar.SetToken(opts.Token)
	rollbar.SetEnvironment(opts.Environment)
	rollbar.SetServerHost(opts.Host)
	rollbar.SetCodeVersion(opts.CodeVersion)
	rollbar.SetEnabled(opts.Token != "")
	return &RollbarLogger{std: std}
}

// Discard returns a logger that reports nowhere, for tests.
func Discard() *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: log.New(io.Discard, "", 0)}
}

// Close flushes queued Rollbar items.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var actorSet bool
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	for _, arg := range args {
		if a, ok := arg.(auth.Actor); ok {
			if !actorSet {
				rollbar.SetPerson(strconv.FormatInt(a.ID, 10), a.Name, "")
				actorSet = true
			}
			continue
		}
		out = append(out, arg)
	}
	if !actorSet {
		rollbar.ClearPerson()
	}
	return out
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("  %+v", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
