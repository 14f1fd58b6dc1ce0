// Package render paints metric values into dashboard widgets.
package render

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/metrics"
	"github.com/and161185/portal-dashboard/model"
)

// ChangedClass marks a widget whose value just changed.
const ChangedClass = "changed"

// Painter writes formatted values into widgets and flashes changed ones.
type Painter struct {
	surface Surface
	format  *Formatter
	flash   time.Duration
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	flashes map[string]*flash
}

type flash struct {
	timer  *time.Timer
	widget Widget
}

// NewPainter creates a Painter. A non-positive flash duration disables the
// changed highlight.
func NewPainter(surface Surface, format *Formatter, flashDuration time.Duration, logger *zap.SugaredLogger) *Painter {
	return &Painter{
		surface: surface,
		format:  format,
		flash:   flashDuration,
		logger:  logger,
		flashes: make(map[string]*flash),
	}
}

// Paint updates the widget of the named metric. The text is written before
// returning; the changed class is cleared asynchronously.
func (p *Painter) Paint(name model.MetricName, value float64) {
	id := name.WidgetID()
	w, ok := p.surface.Lookup(id)
	if !ok {
		p.logger.Debugw("widget not found", "widget", id)
		return
	}

	text := p.format.Format(name, value)
	changed := w.Text() != text
	w.SetText(text)
	if !changed {
		return
	}
	metrics.WidgetChanges.WithLabelValues(string(name)).Inc()
	if p.flash <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.flashes[id]; ok {
		prev.timer.Stop()
	}
	w.AddClass(ChangedClass)
	f := &flash{widget: w}
	f.timer = time.AfterFunc(p.flash, func() {
		p.mu.Lock()
		current := p.flashes[id] == f
		if current {
			delete(p.flashes, id)
		}
		p.mu.Unlock()
		if current {
			w.RemoveClass(ChangedClass)
		}
	})
	p.flashes[id] = f
}

// PaintSnapshot paints every metric of s.
func (p *Painter) PaintSnapshot(s model.MetricSnapshot) {
	for _, name := range model.MetricNames {
		p.Paint(name, s.Value(name))
	}
}

// Stop cancels pending highlight timers and clears their classes.
func (p *Painter) Stop() {
	p.mu.Lock()
	pending := p.flashes
	p.flashes = make(map[string]*flash)
	p.mu.Unlock()

	for _, f := range pending {
		f.timer.Stop()
		f.widget.RemoveClass(ChangedClass)
	}
}
