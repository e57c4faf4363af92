package device

import (
	"context"
	"time"

	"github.com/roach88/rmlearn/internal/clock"
	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/transport"
)

// DefaultSensorInterval is how often a device with sensors is polled.
const DefaultSensorInterval = 60 * time.Second

const sensorReadTimeout = 10 * time.Second

// sensorPoller reads temperature and humidity on a fixed interval and
// publishes each reading. Failed reads are logged and the previous reading
// is kept.
type sensorPoller struct {
	c        *Controller
	reader   transport.SensorReader
	interval time.Duration

	timer   clock.Timer
	stopped bool
	reading transport.Reading
	ok      bool
}

// startSensors polls once and schedules the next poll. It does nothing
// unless the model has sensors and the transport can read them.
func (c *Controller) startSensors(ctx context.Context) {
	if !c.cfg.Model.Sensors {
		return
	}
	reader, ok := c.cfg.Transport.(transport.SensorReader)
	if !ok {
		c.logger.Debug("transport cannot read sensors")
		return
	}
	interval := c.cfg.SensorInterval
	if interval <= 0 {
		interval = DefaultSensorInterval
	}

	p := &sensorPoller{c: c, reader: reader, interval: interval}
	c.sensorMu.Lock()
	c.sensors = p
	c.sensorMu.Unlock()

	p.poll(ctx)
	c.sensorMu.Lock()
	defer c.sensorMu.Unlock()
	p.schedule()
}

// schedule arms the next poll. Callers hold c.sensorMu.
func (p *sensorPoller) schedule() {
	if p.stopped {
		return
	}
	p.timer = p.c.cfg.Clock.AfterFunc(p.interval, func() {
		p.poll(context.Background())
		p.c.sensorMu.Lock()
		defer p.c.sensorMu.Unlock()
		p.schedule()
	})
}

func (p *sensorPoller) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sensorReadTimeout)
	defer cancel()

	r, err := p.reader.ReadSensors(ctx)
	if err != nil {
		p.c.logger.Debug("sensor poll failed", "error", err)
		return
	}

	p.c.sensorMu.Lock()
	p.reading, p.ok = r, true
	p.c.sensorMu.Unlock()

	p.c.cfg.Notifier.SetMeasurement(notify.MeasureTemperature, r.Temperature)
	p.c.cfg.Notifier.SetMeasurement(notify.MeasureHumidity, r.Humidity)
	p.c.logger.Debug("sensors polled", "temperature", r.Temperature, "humidity", r.Humidity)
}

// stopSensors cancels the pending poll.
func (c *Controller) stopSensors() {
	c.sensorMu.Lock()
	defer c.sensorMu.Unlock()
	if c.sensors == nil {
		return
	}
	c.sensors.stopped = true
	if c.sensors.timer != nil {
		c.sensors.timer.Stop()
	}
}

// Reading returns the last successful sensor reading. ok is false when the
// device has no sensors or has not answered yet.
func (c *Controller) Reading() (r transport.Reading, ok bool) {
	c.sensorMu.Lock()
	defer c.sensorMu.Unlock()
	if c.sensors == nil {
		return transport.Reading{}, false
	}
	return c.sensors.reading, c.sensors.ok
}
