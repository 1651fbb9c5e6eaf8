package message

import (
	log "github.com/sirupsen/logrus"
)

// Sink receives diagnostics from the detector. The detector treats the sink
// as append-only and never inspects what it does with a message.
type Sink interface {
	Emit(d Diagnostic)
}

// Collector is a Sink that retains everything it receives. Test helper.
type Collector struct {
	Diagnostics []Diagnostic
}

// Emit implements Sink.
func (c *Collector) Emit(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// Races returns the collected diagnostics with SeverityError.
func (c *Collector) Races() []Diagnostic {
	var out []Diagnostic

	for _, d := range c.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}

	return out
}

// LogSink forwards diagnostics to logrus, mapping severities onto log
// levels. It is the default sink when the embedding interpreter does not
// supply one.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(d Diagnostic) {
	entry := log.WithFields(log.Fields{
		"space":   d.Space.Name(),
		"address": d.Address,
		"kernel":  d.Kernel,
	})

	switch d.Severity {
	case SeverityError:
		entry.Error(d.String())
	case SeverityWarning:
		entry.Warn(d.String())
	case SeverityInfo:
		entry.Info(d.String())
	default:
		entry.Debug(d.String())
	}
}
