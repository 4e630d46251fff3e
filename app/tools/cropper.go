package tools

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// RegionPicker shows a captured display and lets the user drag out a region
// or tap a single pixel. Selections are reported in image coordinates.
type RegionPicker struct {
	widget.BaseWidget

	img        image.Image
	startPos   fyne.Position
	currentPos fyne.Position
	isDragging bool

	raster    *canvas.Image
	selection *canvas.Rectangle

	OnSelected func(rect image.Rectangle)
}

func NewRegionPicker(img image.Image, onSelected func(image.Rectangle)) *RegionPicker {
	c := &RegionPicker{
		img:        img,
		OnSelected: onSelected,
	}
	c.ExtendBaseWidget(c)

	c.raster = canvas.NewImageFromImage(img)
	c.raster.ScaleMode = canvas.ImageScalePixels // No smoothing, colors must stay exact
	c.raster.FillMode = canvas.ImageFillContain

	c.selection = canvas.NewRectangle(color.RGBA{R: 255, G: 0, B: 0, A: 60})
	c.selection.StrokeColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	c.selection.StrokeWidth = 2
	c.selection.Hide()

	return c
}

func (c *RegionPicker) CreateRenderer() fyne.WidgetRenderer {
	return &pickerRenderer{
		picker:  c,
		objects: []fyne.CanvasObject{c.raster, c.selection},
	}
}

func (c *RegionPicker) Dragged(e *fyne.DragEvent) {
	if !c.isDragging {
		c.isDragging = true
		c.startPos = e.Position.Subtract(e.Dragged)
		c.selection.Show()
	}
	c.currentPos = e.Position
	c.Refresh()
}

func (c *RegionPicker) DragEnd() {
	c.isDragging = false
	c.Refresh()
	c.report()
}

// Tapped selects the single pixel under the tap.
func (c *RegionPicker) Tapped(e *fyne.PointEvent) {
	c.startPos = e.Position
	c.currentPos = e.Position
	c.selection.Hide()
	c.Refresh()

	if c.OnSelected == nil {
		return
	}
	if p, ok := viewToPixel(c.Size(), c.img.Bounds(), e.Position); ok {
		c.OnSelected(image.Rectangle{Min: p, Max: p.Add(image.Point{X: 1, Y: 1})})
	}
}

func (c *RegionPicker) Cursor() desktop.Cursor {
	return desktop.CrosshairCursor
}

func (c *RegionPicker) report() {
	if c.OnSelected == nil {
		return
	}
	if r, ok := viewToImage(c.Size(), c.img.Bounds(), c.startPos, c.currentPos); ok {
		c.OnSelected(r)
	}
}

// fitRect returns where an image of bounds b is drawn inside view with
// ImageFillContain: the offset of its top left corner and the drawn size.
func fitRect(view fyne.Size, b image.Rectangle) (off fyne.Position, w, h float32) {
	if view.Width <= 0 || view.Height <= 0 || b.Empty() {
		return fyne.Position{}, 0, 0
	}
	aspect := float32(b.Dx()) / float32(b.Dy())
	if view.Width/view.Height > aspect {
		h = view.Height
		w = h * aspect
		return fyne.NewPos((view.Width-w)/2, 0), w, h
	}
	w = view.Width
	h = w / aspect
	return fyne.NewPos(0, (view.Height-h)/2), w, h
}

// viewToImage maps a drag between a and b onto image pixels, clipped to the
// drawn image. ok is false when the drag misses the image.
func viewToImage(view fyne.Size, b image.Rectangle, a, z fyne.Position) (image.Rectangle, bool) {
	off, w, h := fitRect(view, b)
	if w == 0 || h == 0 {
		return image.Rectangle{}, false
	}

	x0 := max32(min32(a.X, z.X), off.X)
	y0 := max32(min32(a.Y, z.Y), off.Y)
	x1 := min32(max32(a.X, z.X), off.X+w)
	y1 := min32(max32(a.Y, z.Y), off.Y+h)
	if x1-x0 <= 0 || y1-y0 <= 0 {
		return image.Rectangle{}, false
	}

	sx := float32(b.Dx()) / w
	sy := float32(b.Dy()) / h
	r := image.Rect(
		b.Min.X+int((x0-off.X)*sx),
		b.Min.Y+int((y0-off.Y)*sy),
		b.Min.X+int((x1-off.X)*sx),
		b.Min.Y+int((y1-off.Y)*sy),
	).Intersect(b)
	return r, !r.Empty()
}

// viewToPixel maps one view position onto the image pixel under it.
func viewToPixel(view fyne.Size, b image.Rectangle, p fyne.Position) (image.Point, bool) {
	off, w, h := fitRect(view, b)
	if w == 0 || h == 0 {
		return image.Point{}, false
	}
	if p.X < off.X || p.Y < off.Y || p.X >= off.X+w || p.Y >= off.Y+h {
		return image.Point{}, false
	}
	pt := image.Point{
		X: b.Min.X + int((p.X-off.X)*float32(b.Dx())/w),
		Y: b.Min.Y + int((p.Y-off.Y)*float32(b.Dy())/h),
	}
	return pt, pt.In(b)
}

type pickerRenderer struct {
	picker  *RegionPicker
	objects []fyne.CanvasObject
}

func (r *pickerRenderer) Layout(s fyne.Size) {
	r.objects[0].Resize(s)
	r.objects[0].Move(fyne.NewPos(0, 0))
	r.placeSelection()
}

func (r *pickerRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *pickerRenderer) Refresh() {
	r.placeSelection()
	canvas.Refresh(r.picker)
}

func (r *pickerRenderer) placeSelection() {
	c := r.picker
	minX := min32(c.startPos.X, c.currentPos.X)
	minY := min32(c.startPos.Y, c.currentPos.Y)
	maxX := max32(c.startPos.X, c.currentPos.X)
	maxY := max32(c.startPos.Y, c.currentPos.Y)

	r.objects[1].Move(fyne.NewPos(minX, minY))
	r.objects[1].Resize(fyne.NewSize(maxX-minX, maxY-minY))
}

func (r *pickerRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *pickerRenderer) Destroy() {}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
