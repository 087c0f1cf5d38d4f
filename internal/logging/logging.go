// Package logging configures the process-wide logger and exposes the
// tag-prefixed helpers used across every component:
// [System], [Coordinator], [Election], [Chat], [Multicast].
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// SetLevel adjusts verbosity; cmd/chatnode wires this to a --verbose flag.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// Logger prefixes every message with a fixed tag (e.g. "[Coordinator]") and
// carries structured fields (node_id, peer_id, ...) alongside it.
type Logger struct {
	prefix string
	entry  *logrus.Entry
}

func newTagged(prefix string) Logger {
	return Logger{prefix: prefix, entry: logrus.NewEntry(base)}
}

// System, Coordinator, Election, Chat and Multicast are the five tags;
// every component logs through one of these.
func System() Logger     { return newTagged("System") }
func Coordinator() Logger { return newTagged("Coordinator") }
func Election() Logger   { return newTagged("Election") }
func Chat() Logger       { return newTagged("Chat") }
func Multicast() Logger  { return newTagged("Multicast") }

// With returns a copy carrying the given structured fields.
func (l Logger) With(fields logrus.Fields) Logger {
	l.entry = l.entry.WithFields(fields)
	return l
}

func (l Logger) Infof(format string, args ...any) {
	l.entry.Info("[" + l.prefix + "] " + fmt.Sprintf(format, args...))
}

func (l Logger) Warnf(format string, args ...any) {
	l.entry.Warn("[" + l.prefix + "] " + fmt.Sprintf(format, args...))
}

func (l Logger) Errorf(format string, args ...any) {
	l.entry.Error("[" + l.prefix + "] " + fmt.Sprintf(format, args...))
}

// Fatalf logs and terminates the process; listener bind failure and
// similar startup errors are fatal.
func (l Logger) Fatalf(format string, args ...any) {
	l.entry.Fatal("[" + l.prefix + "] " + fmt.Sprintf(format, args...))
}
