package platform

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/gotouch/config"
	"lautenbacher.net/gotouch/logging"
	"lautenbacher.net/gotouch/stmpe610"
	"lautenbacher.net/gotouch/stmpe610/sim"
	"lautenbacher.net/gotouch/util"
)

const (
	defaultPressure = 40
	pressureStep    = 5
)

// TUIPlatform runs the real Controller against an emulated chip. Mouse
// presses on the panel pane touch the chip.
type TUIPlatform struct {
	*AbstractPlatform
	chip         *sim.Chip
	tviewapp     *tview.Application
	intro        *tview.TextView
	panel        *tview.Box
	logView      *tview.TextView
	ossignalChan chan os.Signal
	logFlushOnce sync.Once

	mu       sync.Mutex
	pressure int
	holding  bool
	marker   *util.TouchEvent
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		ossignalChan: ossignalchan,
		pressure:     defaultPressure,
	}
	inst.AbstractPlatform = newAbstractPlatform(conf)
	return inst
}

func (s *TUIPlatform) Start() error {
	simcfg := s.config.Simulation
	kind, err := config.ParseKind(simcfg.Transport)
	if err != nil {
		return err
	}
	s.chip = sim.NewChip(sim.WithMode(stmpe610.Mode(simcfg.Mode)))
	slog.Info("Simulating STMPE610", "transport", kind, "mode", s.chip.Mode(),
		"panel", fmt.Sprintf("%dx%d", simcfg.PanelWidth, simcfg.PanelHeight))

	if err := s.initController(s.chip.Transport(kind)); err != nil {
		return err
	}

	s.initSimulationTUI()
	s.onTouch = s.showTouch
	s.startPolling()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.stopPolling()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

// getIntroText generates the dynamic text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	s.mu.Lock()
	pressure := s.pressure
	marker := s.marker
	s.mu.Unlock()

	last := "none"
	if marker != nil {
		last = marker.Point.String()
		if !marker.Pressed {
			last += " released"
		}
	}
	line1 := fmt.Sprintf("Pressure: [#ffff00]%-3d[white] | Hit [#ff0000]+[white]/[#ff0000]-[white] to change | Last touch: [#ffff00]%s[white]", pressure, last)
	line2 := "Click or drag inside the panel to touch it"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI() {
	s.tviewapp = tview.NewApplication().EnableMouse(true)

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" GOTOUCH Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Touch Panel Pane ---
	s.panel = tview.NewBox()
	s.panel.SetBorder(true).SetTitle(" Touch panel ").SetTitleColor(tcell.ColorLightBlue)
	s.panel.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))
	s.panel.SetDrawFunc(s.drawMarker)

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.panel, 0, 2, false).
		AddItem(s.logView, 0, 1, true)

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logging.SetOutput(tview.ANSIWriter(s.logView))
			close(s.readyChan) // Signal that the TUI is ready
		})
	})

	// --- Input Handling ---
	s.tviewapp.SetMouseCapture(s.handleMouse)
	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				s.ossignalChan <- os.Interrupt
				return nil
			case 'r', 'R':
				s.ossignalChan <- syscall.SIGHUP
				return nil
			case '+':
				s.changePressure(pressureStep)
				return nil
			case '-':
				s.changePressure(-pressureStep)
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

func (s *TUIPlatform) changePressure(delta int) {
	s.mu.Lock()
	s.pressure = util.Clamp(s.pressure+delta, 0, 255)
	s.mu.Unlock()
	s.intro.SetText(s.getIntroText())
}

// handleMouse turns presses and drags inside the panel into chip touches.
// Releasing the button anywhere lifts the touch. It runs on the TUI
// goroutine.
func (s *TUIPlatform) handleMouse(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	mx, my := event.Position()
	x, y, w, h := s.panel.GetInnerRect()
	inside := mx >= x && mx < x+w && my >= y && my < y+h

	switch {
	case action == tview.MouseLeftDown && inside,
		action == tview.MouseMove && event.Buttons()&tcell.Button1 != 0 && inside:
		cx, cy := panelToChip(mx-x, my-y, w, h, s.config.Simulation.PanelWidth, s.config.Simulation.PanelHeight)
		s.press(cx, cy)
		return nil, action
	case action == tview.MouseLeftUp:
		s.release()
	}
	return event, action
}

func (s *TUIPlatform) press(x, y int) {
	s.mu.Lock()
	z := s.pressure
	s.holding = true
	s.mu.Unlock()
	s.chip.Touch(x, y, z)
}

func (s *TUIPlatform) release() {
	s.mu.Lock()
	wasHolding := s.holding
	s.holding = false
	s.mu.Unlock()
	if wasHolding {
		s.chip.Release()
	}
}

// showTouch is called from the poll loop for every published event.
func (s *TUIPlatform) showTouch(ev *util.TouchEvent) {
	s.mu.Lock()
	s.marker = ev
	s.mu.Unlock()
	s.tviewapp.QueueUpdateDraw(func() {
		s.intro.SetText(s.getIntroText())
	})
}

// drawMarker draws the last reported point back onto the panel, so the
// round trip through the driver is visible.
func (s *TUIPlatform) drawMarker(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	innerX, innerY, innerW, innerH := x+1, y+1, width-2, height-2
	s.mu.Lock()
	marker := s.marker
	s.mu.Unlock()
	if marker == nil || innerW <= 0 || innerH <= 0 {
		return innerX, innerY, innerW, innerH
	}

	col, row := chipToPanel(marker.Point.X, marker.Point.Y, innerW, innerH,
		s.config.Simulation.PanelWidth, s.config.Simulation.PanelHeight)
	style := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	mark := '●'
	if !marker.Pressed {
		style = style.Foreground(tcell.ColorGray)
		mark = '○'
	}
	screen.SetContent(innerX+col, innerY+row, mark, nil, style)
	return innerX, innerY, innerW, innerH
}

// panelToChip scales a cell inside a w x h pane to chip coordinates of a
// panelW x panelH panel.
func panelToChip(col, row, w, h, panelW, panelH int) (int, int) {
	return scale(col, w, panelW), scale(row, h, panelH)
}

// chipToPanel is the inverse of panelToChip.
func chipToPanel(x, y, w, h, panelW, panelH int) (int, int) {
	return scale(x, panelW, w), scale(y, panelH, h)
}

func scale(v, from, to int) int {
	if from <= 1 || to <= 1 {
		return 0
	}
	return util.Clamp(v*(to-1)/(from-1), 0, to-1)
}
