package reactor

import (
	"context"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hako/durafmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/constants"
	"github.com/ConserveLee/pxlreact/internal/engine"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// NewReactorPanel creates the UI panel that runs the engine. The returned
// cleanup stops the engine and releases the screen; call it when the window closes.
func NewReactorPanel(win fyne.Window, cfg *config.Config, cfgPath string, logData binding.StringList, appLogger *logger.AppLogger) (fyne.CanvasObject, func()) {
	statusData := binding.NewString()
	statusData.Set("Status: Ready")

	// --- Engine Initialization ---
	eng, err := engine.New(cfg, engine.LiveProviders(), appLogger)
	if err != nil {
		appLogger.Error("Startup Error: %v", err)
		msg := widget.NewLabel(fmt.Sprintf("Configuration %s is invalid:\n%v", cfgPath, err))
		msg.Wrapping = fyne.TextWrapWord
		return container.NewVBox(msg), func() {}
	}
	eng.StatusFunc = func(msg string) {
		fyne.Do(func() { statusData.Set(msg) })
	}

	ctx, cancel := context.WithCancel(context.Background())

	// --- UI Components ---

	// 1. Status & Gate
	statusLabel := widget.NewLabelWithData(statusData)
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}
	gateLabel := widget.NewLabel(gateText(eng))

	// 2. Slot readouts, preview first
	snap := eng.Snapshot()
	swatches := make([]*canvas.Rectangle, len(snap))
	labels := make([]*widget.Label, len(snap))
	slotRows := container.NewVBox()
	for i := range snap {
		swatches[i] = canvas.NewRectangle(color.Transparent)
		swatches[i].SetMinSize(fyne.NewSize(20, 20))
		labels[i] = widget.NewLabel("")
		labels[i].TextStyle = fyne.TextStyle{Monospace: true}
		slotRows.Add(container.NewHBox(swatches[i], labels[i]))
	}

	refresh := func() {
		for i, s := range eng.Snapshot() {
			var remaining time.Duration
			if r := eng.Reaction(i); r != nil {
				remaining = r.Remaining()
			}
			if s.HasColor {
				swatches[i].FillColor = s.Color
			} else {
				swatches[i].FillColor = color.Transparent
			}
			swatches[i].Refresh()
			labels[i].SetText(slotText(s, remaining))
		}
		gateLabel.SetText(gateText(eng))
	}
	refresh()

	go func() {
		ticker := time.NewTicker(constants.PanelRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fyne.Do(refresh)
			}
		}
	}()

	// 3. Binding & capture controls
	names := eng.Registry().Names()
	slotOptions := make([]string, 0, len(snap)-1)
	for i := 1; i < len(snap); i++ {
		slotOptions = append(slotOptions, fmt.Sprintf("Slot %d", i))
	}
	slotSelect := widget.NewSelect(slotOptions, nil)
	slotSelect.SetSelectedIndex(0)
	reactionSelect := widget.NewSelect(names, nil)
	if len(names) > 0 {
		reactionSelect.SetSelectedIndex(0)
	}

	selectedSlot := func() int {
		n, _ := strconv.Atoi(strings.TrimPrefix(slotSelect.Selected, "Slot "))
		return n
	}

	bindBtn := widget.NewButton("Bind", func() {
		if err := eng.Bind(selectedSlot(), reactionSelect.Selected); err != nil {
			dialog.ShowError(err, win)
		}
		refresh()
	})
	unbindBtn := widget.NewButton("Unbind", func() {
		if err := eng.Unbind(selectedSlot()); err != nil {
			dialog.ShowError(err, win)
		}
		refresh()
	})
	followBtn := widget.NewButton("Slot to pointer", func() {
		if err := eng.Reassign(selectedSlot(), nil); err != nil {
			dialog.ShowError(err, win)
		}
		refresh()
	})

	var captureMu sync.Mutex
	captureBtn := widget.NewButton(fmt.Sprintf("Capture from pointer (%s)", cfg.SettleDelay), nil)
	captureBtn.OnTapped = func() {
		if !captureMu.TryLock() {
			return
		}
		name := reactionSelect.Selected
		captureBtn.Disable()
		go func() {
			defer captureMu.Unlock()
			_, err := eng.UpdateFromPointer(ctx, name)
			fyne.Do(func() {
				captureBtn.Enable()
				if err != nil && ctx.Err() == nil {
					dialog.ShowError(err, win)
				}
				refresh()
			})
		}()
	}

	saveBtn := widget.NewButton("Save", func() {
		cfg.Reactions = eng.Registry().Specs()
		if err := config.Save(cfg, cfgPath); err != nil {
			dialog.ShowError(err, win)
			return
		}
		appLogger.Info("Saved %d reactions to %s", len(cfg.Reactions), cfgPath)
	})

	debugCheck := widget.NewCheck("Debug log", func(on bool) {
		appLogger.SetDebug(on)
	})
	debugCheck.SetChecked(cfg.Debug)

	// 4. Logs
	logList := widget.NewListWithData(
		logData,
		func() fyne.CanvasObject { return widget.NewLabel("Log entry template") },
		func(i binding.DataItem, o fyne.CanvasObject) { o.(*widget.Label).Bind(i.(binding.String)) },
	)

	// Auto-scroll
	logData.AddListener(binding.NewDataListener(func() {
		list, _ := logData.Get()
		if len(list) > 0 {
			logList.ScrollToBottom()
		}
	}))

	// 5. Start / Stop
	startBtn := widget.NewButton("Start", nil)
	stopBtn := widget.NewButton("Stop", nil)
	stopBtn.Disable()
	startBtn.Importance = widget.HighImportance

	startBtn.OnTapped = func() {
		if err := eng.Start(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		statusData.Set("Status: Running")
		startBtn.Disable()
		stopBtn.Enable()
	}

	stopBtn.OnTapped = func() {
		stopBtn.Disable()
		go func() {
			eng.Stop() // Waits for in-flight key presses
			fyne.Do(func() { startBtn.Enable() })
		}()
	}

	// --- Layout ---
	controls := container.NewVBox(
		widget.NewLabel(fmt.Sprintf("Config: %s", cfgPath)),
		statusLabel,
		gateLabel,
		container.NewHBox(startBtn, stopBtn, debugCheck),
		widget.NewSeparator(),
		slotRows,
		widget.NewSeparator(),
		container.NewHBox(slotSelect, reactionSelect),
		container.NewHBox(bindBtn, unbindBtn, followBtn),
		container.NewHBox(captureBtn, saveBtn),
		widget.NewSeparator(),
		widget.NewLabel("Log:"),
	)

	cleanup := func() {
		cancel()
		if err := eng.Close(); err != nil {
			appLogger.Error("Close: %v", err)
		}
	}

	return container.NewBorder(controls, nil, nil, nil, logList), cleanup
}

// slotText renders one slot line for the readout.
func slotText(s engine.PxlSnapshot, remaining time.Duration) string {
	var b strings.Builder
	if s.Index == 0 {
		b.WriteString("ptr ")
	} else {
		fmt.Fprintf(&b, "#%d  ", s.Index)
	}
	fmt.Fprintf(&b, "(%d, %d)", s.Location.X, s.Location.Y)
	if s.HasColor {
		fmt.Fprintf(&b, " %s %s", s.Color, s.Color.Hex())
	} else {
		b.WriteString(" -")
	}
	if s.Reaction == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "  %s: ", s.Reaction)
	if s.State == engine.Cooldown && remaining > 0 {
		b.WriteString("cooldown ")
		b.WriteString(durafmt.Parse(remaining.Truncate(100 * time.Millisecond)).LimitFirstN(2).Format(shortUnits))
	} else {
		b.WriteString(s.State.String())
	}
	return b.String()
}

func gateText(eng *engine.Engine) string {
	g := eng.Gate()
	if g == nil {
		return "Gate: off"
	}
	inApp, markerOK := g.Diagnose()
	return fmt.Sprintf("Gate: window %s, marker %s", yesNo(inApp), yesNo(markerOK))
}

func yesNo(b bool) string {
	if b {
		return "ok"
	}
	return "no"
}
