package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"lcdbridge/internal/preflight"
	"lcdbridge/internal/store"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusStyles = [...]struct{ tag, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) String() string {
	if k < 0 || int(k) >= len(statusStyles) {
		return statusStyles[statusInfo].tag
	}
	return statusStyles[k].tag
}

func (k statusKind) color() string {
	if k < 0 || int(k) >= len(statusStyles) {
		return ""
	}
	return statusStyles[k].color
}

// statusLabelWidth fits the longest label, "Saved animation:".
const statusLabelWidth = 17

// statusLine is one "label: [KIND] message" row of `lcdbridge status`.
type statusLine struct {
	Label   string
	Kind    statusKind
	Message string
}

func (l statusLine) render(colorize bool) string {
	tag := "[" + l.Kind.String() + "]"
	if l.Message != "" {
		tag += " " + l.Message
	}
	out := fmt.Sprintf("  %-*s %s", statusLabelWidth, l.Label+":", tag)
	if colorize && l.Kind.color() != "" {
		return l.Kind.color() + out + ansiReset
	}
	return out
}

// preflightLine reports a failed check as an error.
func preflightLine(r preflight.Result) statusLine {
	kind := statusOK
	if !r.Passed {
		kind = statusError
	}
	return statusLine{Label: r.Name, Kind: kind, Message: r.Detail}
}

// uploadLine summarises the newest upload history row.
func uploadLine(up store.Upload) statusLine {
	kind := statusInfo
	switch up.Outcome {
	case store.OutcomeUploaded:
		kind = statusOK
	case store.OutcomeFailed:
		kind = statusError
	}
	msg := fmt.Sprintf("%s, %s, %d colors (%s)", up.Outcome, humanize.IBytes(uint64(up.BlobBytes)), up.Colors, humanize.Time(up.StartedAt))
	if up.OverCapacity {
		msg += ", over capacity"
	}
	return statusLine{Label: "Last upload", Kind: kind, Message: msg}
}

// statusPrinter writes sections of status lines, coloured on a terminal.
type statusPrinter struct {
	w        io.Writer
	colorize bool
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, colorize: shouldColorize(w)}
}

func (p *statusPrinter) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if p.colorize {
		heading = ansiBlue + heading + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	fmt.Fprintln(p.w, heading)
	fmt.Fprintln(p.w, rule)
}

func (p *statusPrinter) lines(lines ...statusLine) {
	for _, l := range lines {
		fmt.Fprintln(p.w, l.render(p.colorize))
	}
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
