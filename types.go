package insurai

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Logger is the structured logger used across the package. Arguments after
// msg are key/value pairs, so a *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds token options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetAuthScheme() string
}

// Clock returns the current time. Tests replace it with a fixed clock.
type Clock func() time.Time

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

// defLogger prints info and above to stdout and drops debug lines.
type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print(format("ERR", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print(format("WRN", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print(format("INF", msg, args...))
}

func (d defLogger) Debug(string, ...any) {}

func format(level, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] INSURAI ")
	b.WriteString(msg)
	for i := 0; i < len(args); i++ {
		if attr, ok := args[i].(slog.Attr); ok {
			fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
			continue
		}
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			i++
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	b.WriteString("\n")
	return b.String()
}
