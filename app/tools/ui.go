package tools

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/kbinani/screenshot"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ConserveLee/pxlreact/internal/engine/screen"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

// NewToolsPanel creates the UI panel for the pixel probe and region search
func NewToolsPanel(win fyne.Window, settle time.Duration, appLogger *logger.AppLogger) fyne.CanvasObject {
	selectedDisplay := 0
	reader := screen.NewReader()
	pointer := screen.RobotPointer{}

	// 1. Screen Selector
	displaySelect := widget.NewSelect(displayOptions(), func(selected string) {
		var id int
		if _, err := fmt.Sscanf(selected, "Display %d", &id); err == nil {
			selectedDisplay = id
		}
	})
	displaySelect.SetSelectedIndex(0)

	// 2. Result readout
	swatch := canvas.NewRectangle(color.Transparent)
	swatch.SetMinSize(fyne.NewSize(32, 32))
	swatch.StrokeColor = color.Gray{Y: 0x80}
	swatch.StrokeWidth = 1
	resultLabel := widget.NewLabel("No sample yet")
	resultLabel.TextStyle = fyne.TextStyle{Monospace: true}

	lastReport := ""
	show := func(p image.Point, c screen.Color) {
		lastReport = screen.Report(p, c)
		swatch.FillColor = c
		swatch.Refresh()
		resultLabel.SetText(lastReport)
	}

	// 3. Pointer probe
	probeBtn := widget.NewButton(fmt.Sprintf("Probe pointer (%s)", settle), nil)
	probeBtn.OnTapped = func() {
		probeBtn.Disable()
		p := pointer.Position()
		resultLabel.SetText(fmt.Sprintf("Sampling (%d, %d)...", p.X, p.Y))
		go func() {
			time.Sleep(settle) // Let hover highlights fade
			c, ok := reader.Sample(p)
			fyne.Do(func() {
				probeBtn.Enable()
				if !ok {
					resultLabel.SetText(fmt.Sprintf("(%d, %d) unreadable", p.X, p.Y))
					return
				}
				show(p, c)
				appLogger.Info("Probe %s", lastReport)
			})
		}()
	}
	probeBtn.Importance = widget.HighImportance

	// 4. Region search
	targetEntry := widget.NewEntry()
	targetEntry.SetPlaceHolder("#a7222e (empty: report tapped pixel)")

	pickBtn := widget.NewButton("Capture & pick region", func() {
		img, bounds, err := screen.CaptureDisplay(selectedDisplay)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}

		var target *screen.Color
		if targetEntry.Text != "" {
			c, err := screen.ParseHex(targetEntry.Text)
			if err != nil {
				dialog.ShowError(err, win)
				return
			}
			target = &c
		}

		// Image coordinates are relative to the display origin
		toScreen := func(p image.Point) image.Point {
			return p.Sub(img.Bounds().Min).Add(bounds.Min)
		}

		showPickerWindow(img, func(roi image.Rectangle) {
			if target == nil || roi.Dx()*roi.Dy() == 1 {
				p := roi.Min
				show(toScreen(p), screen.FromStd(img.At(p.X, p.Y)))
				return
			}
			m, ok := screen.FindMostSimilar(img, roi, *target)
			if !ok {
				resultLabel.SetText("Region is empty")
				return
			}
			show(toScreen(m.Point), m.Color)
			appLogger.Info("Closest to %s in %v: %s (distance %d)", target.Hex(), roi.Sub(img.Bounds().Min).Add(bounds.Min), lastReport, m.Distance)
		})
	})

	copyBtn := widget.NewButton("Copy result", func() {
		if lastReport == "" {
			return
		}
		win.Clipboard().SetContent(lastReport)
	})

	content := container.NewVBox(
		widget.NewLabel("Screen:"),
		displaySelect,
		widget.NewSeparator(),
		probeBtn,
		widget.NewSeparator(),
		widget.NewLabel("Target color:"),
		targetEntry,
		pickBtn,
		widget.NewSeparator(),
		container.NewHBox(swatch, resultLabel),
		copyBtn,
	)

	return content
}

// displayOptions lists the active displays for a Select.
func displayOptions() []string {
	var options []string
	for i := 0; i < screenshot.NumActiveDisplays(); i++ {
		bounds := screenshot.GetDisplayBounds(i)
		options = append(options, fmt.Sprintf("Display %d (%dx%d at %d,%d)", i, bounds.Dx(), bounds.Dy(), bounds.Min.X, bounds.Min.Y))
	}
	if len(options) == 0 {
		options = []string{"Display 0 (Default)"}
	}
	return options
}

func showPickerWindow(img image.Image, onPick func(image.Rectangle)) {
	w := fyne.CurrentApp().NewWindow("Pick region")
	w.Resize(fyne.NewSize(800, 600))

	lbl := widget.NewLabel("Drag to search a region, tap to read one pixel")
	lbl.Alignment = fyne.TextAlignCenter

	picker := NewRegionPicker(img, func(rect image.Rectangle) {
		lbl.SetText(fmt.Sprintf("Selected %v", rect))
		onPick(rect)
	})

	w.SetContent(container.NewBorder(nil, lbl, nil, nil, picker))
	w.Show()
}
