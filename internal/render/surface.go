package render

import (
	"slices"
	"sort"
	"sync"

	"github.com/and161185/portal-dashboard/model"
)

// Widget is a single metric display.
type Widget interface {
	Text() string
	SetText(text string)
	AddClass(class string)
	RemoveClass(class string)
}

// Surface resolves widgets by container id.
type Surface interface {
	Lookup(id string) (Widget, bool)
}

// WidgetView is a read-only copy of a widget's state.
type WidgetView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Classes []string `json:"classes"`
}

// Board is an in-process Surface.
type Board struct {
	widgets map[string]*boardWidget
}

// NewBoard creates a board holding a widget for each of the given metrics.
// With no arguments every known metric gets a widget.
func NewBoard(names ...model.MetricName) *Board {
	if len(names) == 0 {
		names = model.MetricNames
	}
	b := &Board{widgets: make(map[string]*boardWidget, len(names))}
	for _, n := range names {
		b.widgets[n.WidgetID()] = &boardWidget{}
	}
	return b
}

// Lookup implements Surface.
func (b *Board) Lookup(id string) (Widget, bool) {
	w, ok := b.widgets[id]
	if !ok {
		return nil, false
	}
	return w, true
}

// Views returns the state of every widget ordered by id.
func (b *Board) Views() []WidgetView {
	views := make([]WidgetView, 0, len(b.widgets))
	for id, w := range b.widgets {
		views = append(views, w.view(id))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

type boardWidget struct {
	mu      sync.RWMutex
	text    string
	classes []string
}

func (w *boardWidget) Text() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.text
}

func (w *boardWidget) SetText(text string) {
	w.mu.Lock()
	w.text = text
	w.mu.Unlock()
}

func (w *boardWidget) AddClass(class string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.classes, class) {
		w.classes = append(w.classes, class)
	}
}

func (w *boardWidget) RemoveClass(class string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.classes = slices.DeleteFunc(w.classes, func(c string) bool { return c == class })
}

func (w *boardWidget) view(id string) WidgetView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WidgetView{ID: id, Text: w.text, Classes: slices.Clone(w.classes)}
}
