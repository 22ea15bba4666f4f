package mqtt

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// pahoLogger forwards paho's Println/Printf style logging to a logr sink.
type pahoLogger struct {
	sink logr.Logger
}

func newPahoLogger(sink logr.Logger, name string) pahoLogger {
	return pahoLogger{sink: sink.WithName(name).V(1)}
}

func (l pahoLogger) Println(v ...any) {
	l.sink.Info(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l pahoLogger) Printf(format string, v ...any) {
	l.sink.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
