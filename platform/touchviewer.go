package platform

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"lautenbacher.net/gotouch/util"
)

const (
	maxTouchHistory = 500
	viewerTitle     = " GOTOUCH Touch Viewer "
	colWidth        = 22
)

// TouchViewer is a TUI component for watching real touch data on the
// Raspberry Pi.
type TouchViewer struct {
	tuiApp   *tview.Application
	view     *tview.TextView
	history  *deque.Deque[util.TouchEvent]
	releases int
	mu       sync.Mutex
	ossignal chan os.Signal
}

type axisStats struct {
	min    int
	max    int
	mean   float64
	median float64
	stdDev float64
}

// NewTouchViewer creates and initializes a new TouchViewer.
func NewTouchViewer(ossignal chan os.Signal) *TouchViewer {
	tv := &TouchViewer{
		tuiApp:   tview.NewApplication(),
		history:  new(deque.Deque[util.TouchEvent]),
		ossignal: ossignal,
	}
	tv.history.Grow(maxTouchHistory)
	return tv
}

// Start runs the TUI until stopSignal is closed. It should be called as a
// goroutine.
func (tv *TouchViewer) Start(stopSignal chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	tv.setupUI()

	go func() {
		<-stopSignal
		slog.Info("Stopping TouchViewer TUI...")
		tv.tuiApp.Stop()
	}()

	if err := tv.tuiApp.Run(); err != nil {
		slog.Error("Error running TouchViewer TUI", "error", err)
		tv.ossignal <- os.Interrupt
	}
	slog.Info("TouchViewer TUI has stopped.")
}

// Update records ev and schedules a redraw. Safe for concurrent use.
func (tv *TouchViewer) Update(ev *util.TouchEvent) {
	text := tv.record(ev)
	tv.tuiApp.QueueUpdateDraw(func() {
		tv.view.SetText(text)
	})
}

// record adds ev to the history and returns the text to display.
func (tv *TouchViewer) record(ev *util.TouchEvent) string {
	tv.mu.Lock()
	defer tv.mu.Unlock()

	if !ev.Pressed {
		tv.releases++
	} else {
		if tv.history.Len() == maxTouchHistory {
			tv.history.PopFront()
		}
		tv.history.PushBack(*ev)
	}
	return tv.prepareDisplayString(ev)
}

func (tv *TouchViewer) setupUI() {
	tv.view = tview.NewTextView()
	tv.view.SetDynamicColors(true)
	tv.view.SetTextAlign(tview.AlignLeft)
	tv.view.SetBackgroundColor(tcell.ColorDarkSlateGray)
	tv.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)
	tv.view.SetText("Waiting for the first touch...")

	intro := tview.NewTextView()
	intro.SetBorder(true).SetTitle(" GOTOUCH ").SetTitleColor(tcell.ColorLightBlue)
	intro.SetText("Displaying real touch values.\nHit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and restart")
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetDynamicColors(true)
	intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(intro, 4, 1, false)
	// 5 lines of text plus the border
	layout.AddItem(tv.view, 7, 1, true)
	layout.SetRect(1, 1, 4+4*colWidth, 12)

	tv.tuiApp.SetRoot(layout, true).SetFocus(tv.view)
	tv.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			tv.tuiApp.Stop()
			tv.ossignal <- os.Interrupt
		case 'r', 'R':
			tv.tuiApp.Stop()
			tv.ossignal <- syscall.SIGHUP
		}
		return event
	})
}

// prepareDisplayString renders the history statistics. The mutex must be
// held.
func (tv *TouchViewer) prepareDisplayString(last *util.TouchEvent) string {
	n := tv.history.Len()
	xs, ys, zs := make([]int, n), make([]int, n), make([]int, n)
	for i := range n {
		p := tv.history.At(i).Point
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "[yellow]%-*s[white]", colWidth, " Axis")
	for _, h := range []string{"[min|mean|max]", "median", "std dev"} {
		fmt.Fprintf(&buf, "%-*s", colWidth, h)
	}
	for _, axis := range []struct {
		name string
		data []int
	}{{"X", xs}, {"Y", ys}, {"Z", zs}} {
		st := calculateStats(axis.data)
		fmt.Fprintf(&buf, "\n[blue]%-*s[-]", colWidth, " "+axis.name)
		fmt.Fprintf(&buf, "%-*s", colWidth, fmt.Sprintf("[%4d|%4.0f|%4d]", st.min, math.Round(st.mean), st.max))
		fmt.Fprintf(&buf, "%-*s", colWidth, fmt.Sprintf("%6.1f", st.median))
		fmt.Fprintf(&buf, "%-*s", colWidth, fmt.Sprintf("%6.1f", st.stdDev))
	}

	state := "released"
	if last.Pressed {
		state = "pressed"
	}
	fmt.Fprintf(&buf, "\n[yellow] Samples:[white] %d  [yellow]Releases:[white] %d  [yellow]Last:[white] %s %s",
		n, tv.releases, last.Point, state)
	return buf.String()
}

func calculateStats(data []int) axisStats {
	if len(data) == 0 {
		return axisStats{}
	}

	var sum int
	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	mean := float64(sum) / float64(len(data))

	sorted := append([]int(nil), data...)
	sort.Ints(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2.0
	} else {
		median = float64(sorted[mid])
	}

	var sumOfSquares float64
	for _, v := range data {
		sumOfSquares += (float64(v) - mean) * (float64(v) - mean)
	}
	stdDev := math.Sqrt(sumOfSquares / float64(len(data)))

	return axisStats{
		min:    min,
		max:    max,
		mean:   mean,
		median: median,
		stdDev: stdDev,
	}
}
