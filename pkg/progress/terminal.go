package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Progress bar characters.
const (
	BarFilled = "█"
	BarEmpty  = "░"
)

// Width bounds for the bar, derived from the terminal width.
const (
	DefaultWidth = 80
	minBarWidth  = 10
	maxBarWidth  = 40
	// labelReserve is the room left for counters after the bar.
	labelReserve = 40
)

// DrawBar draws a progress bar of the given width.
// Value is clamped to [0, 1] range.
// Example: DrawBar(0.7, 10) returns "███████░░░".
func DrawBar(value float64, width int) string {
	if width <= 0 {
		return ""
	}

	if value < 0 {
		value = 0
	}

	if value > 1 {
		value = 1
	}

	filled := int(value * float64(width))

	return strings.Repeat(BarFilled, filled) + strings.Repeat(BarEmpty, width-filled)
}

// DetectWidth returns the terminal width from the COLUMNS environment
// variable, or DefaultWidth if not set or invalid.
func DetectWidth() int {
	width, err := strconv.Atoi(os.Getenv("COLUMNS"))
	if err != nil || width <= 0 {
		return DefaultWidth
	}

	return width
}

// Terminal redraws a single status line on w.
type Terminal struct {
	w        io.Writer
	barWidth int
	total    int64
	done     int64
	cursor   int64
}

// NewTerminal creates a Terminal sink sized for the current terminal.
func NewTerminal(w io.Writer) *Terminal {
	barWidth := DetectWidth() - labelReserve
	barWidth = max(minBarWidth, min(barWidth, maxBarWidth))

	return &Terminal{w: w, barWidth: barWidth}
}

// Start implements Sink.
func (t *Terminal) Start(total int64) error {
	t.total = total
	t.done = 0

	return t.draw()
}

// Document implements Sink.
func (t *Terminal) Document(int64) error {
	t.done++

	return nil
}

// Batch implements Sink.
func (t *Terminal) Batch(cursor int64) error {
	t.cursor = cursor

	return t.draw()
}

// Finish implements Sink.
func (t *Terminal) Finish() error {
	err := t.draw()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(t.w)
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}

	return nil
}

// Line renders the current status without the carriage return.
func (t *Terminal) Line() string {
	ratio := 1.0
	if t.total > 0 {
		ratio = float64(t.done) / float64(t.total)
	}

	return fmt.Sprintf("[%s] %s / %s documents (cursor %s)",
		DrawBar(ratio, t.barWidth),
		humanize.Comma(t.done),
		humanize.Comma(t.total),
		humanize.Comma(t.cursor),
	)
}

func (t *Terminal) draw() error {
	_, err := fmt.Fprint(t.w, "\r"+t.Line())
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}

	return nil
}
