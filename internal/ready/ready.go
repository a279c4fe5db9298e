// Package ready fires the "order ready" notification on the edge into READY.
package ready

import (
	"fmt"
	"sync"
	"time"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
)

// Cursor is the last status a viewer saw for one order. The zero value is
// NeverSeen.
type Cursor struct {
	seen   bool
	status domain.Status
}

func Seen(s domain.Status) Cursor { return Cursor{seen: true, status: s} }

func (c Cursor) NeverSeen() bool { return !c.seen }

func (c Cursor) Status() domain.Status { return c.status }

// Step applies one observation. The first observation only initializes the
// cursor; an order that is READY when a viewer attaches does not fire. An
// observation older than the cursor (a stale read delivered late) leaves it
// unchanged, so reordered refetches cannot re-arm the edge.
func (c Cursor) Step(s domain.Status) (Cursor, bool) {
	if !c.seen {
		return Seen(s), false
	}
	if s.Rank() < c.status.Rank() {
		return c, false
	}
	return Seen(s), s == domain.StatusReady && c.status != domain.StatusReady
}

// Surface is what a viewer host can do to get attention. Every call is
// best-effort.
type Surface interface {
	PlayTone() error
	Vibrate(pattern []time.Duration) error
	ShowSystemNotification(title, body string) error
}

// Funcs adapts optional callbacks to a Surface; nil fields are skipped.
type Funcs struct {
	Tone  func() error
	Vibe  func(pattern []time.Duration) error
	Alert func(title, body string) error
}

func (f Funcs) PlayTone() error {
	if f.Tone == nil {
		return nil
	}
	return f.Tone()
}

func (f Funcs) Vibrate(p []time.Duration) error {
	if f.Vibe == nil {
		return nil
	}
	return f.Vibe(p)
}

func (f Funcs) ShowSystemNotification(title, body string) error {
	if f.Alert == nil {
		return nil
	}
	return f.Alert(title, body)
}

var VibratePattern = []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

// Dispatcher holds one viewer's cursors. It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.Mutex
	viewerID string
	cursors  map[string]Cursor
	surface  Surface
	log      *logger.Logger
}

func NewDispatcher(viewerID string, surface Surface, lg *logger.Logger) *Dispatcher {
	if surface == nil {
		surface = Funcs{}
	}
	return &Dispatcher{
		viewerID: viewerID,
		cursors:  make(map[string]Cursor),
		surface:  surface,
		log:      lg.With(map[string]any{"viewer_id": viewerID}),
	}
}

// Observe records status for orderID and fires when it is the READY edge.
func (d *Dispatcher) Observe(orderID string, status domain.Status) bool {
	return d.observe(domain.Order{ID: orderID, Status: status})
}

// ObserveOrder is Observe with the order's number and name in the message.
func (d *Dispatcher) ObserveOrder(o domain.Order) bool { return d.observe(o) }

func (d *Dispatcher) observe(o domain.Order) bool {
	d.mu.Lock()
	next, fire := d.cursors[o.ID].Step(o.Status)
	d.cursors[o.ID] = next
	d.mu.Unlock()

	if fire {
		d.fire(o)
	}
	return fire
}

// Cursor returns the current cursor for orderID.
func (d *Dispatcher) Cursor(orderID string) Cursor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursors[orderID]
}

func (d *Dispatcher) fire(o domain.Order) {
	title, body := Message(o)
	fields := map[string]any{"order_id": o.ID}

	if err := d.surface.PlayTone(); err != nil {
		d.log.Warn("notify_tone_failed", err, fields)
	}
	if err := d.surface.Vibrate(VibratePattern); err != nil {
		d.log.Warn("notify_vibrate_failed", err, fields)
	}
	if err := d.surface.ShowSystemNotification(title, body); err != nil {
		d.log.Warn("notify_alert_failed", err, fields)
	}
	d.log.Info("ready_notification_fired", fields)
}

// Message is the title and body shown to the customer.
func Message(o domain.Order) (string, string) {
	title := "Your order is ready"
	if o.OrderNumber != nil {
		title = fmt.Sprintf("Order #%d is ready", *o.OrderNumber)
	}
	body := "Please collect it at the counter."
	if o.CustomerName != "" {
		body = fmt.Sprintf("%s, please collect it at the counter.", o.CustomerName)
	}
	return title, body
}
