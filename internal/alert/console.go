package alert

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/cedarwud/stagegate/pkg/types"
)

// ConsoleSink writes one line per alert to a terminal-style writer,
// color-coded by severity.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink writing to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stdout}
}

// NewConsoleSinkTo creates a console sink writing to w.
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes the alert as "HH:MM:SS LEVEL [stage] message".
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var level string
	switch alert.Level {
	case types.AlertLevelError:
		level = color.RedString("ERROR")
	case types.AlertLevelWarning:
		level = color.YellowString("WARN")
	default:
		level = color.CyanString("INFO")
	}

	stage := alert.StageID
	if stage == "" {
		stage = "-"
	}
	_, err := fmt.Fprintf(s.out, "%s %s [%s] %s\n",
		alert.Timestamp.Format("15:04:05"), level, stage, alert.Message)
	return err
}
