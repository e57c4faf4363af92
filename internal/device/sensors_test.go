package device

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/slots"
	"github.com/roach88/rmlearn/internal/testutil"
	"github.com/roach88/rmlearn/internal/transport"
)

type sensorFixture struct {
	ctrl     *Controller
	sim      *transport.Simulator
	clock    *testutil.FakeClock
	notifier *testutil.RecordingNotifier
}

func openSensorDevice(t *testing.T, sensors bool, prime func(*transport.Simulator)) *sensorFixture {
	t.Helper()
	f := &sensorFixture{
		sim:      transport.NewSimulator(),
		clock:    testutil.NewFakeClock(time.Time{}),
		notifier: testutil.NewRecordingNotifier(false),
	}
	if prime != nil {
		prime(f.sim)
	}
	model := testModel
	model.Sensors = sensors

	c, err := Open(context.Background(), Config{
		ID:             testDeviceID,
		Model:          model,
		DataDir:        t.TempDir(),
		Transport:      f.sim,
		Slots:          slots.NewMemory(),
		Notifier:       f.notifier,
		Clock:          f.clock,
		SensorInterval: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	f.ctrl = c
	return f
}

func (f *sensorFixture) reads() int {
	return len(slices.DeleteFunc(f.sim.Calls(), func(c string) bool {
		return c != string(transport.PhaseReadSensors)
	}))
}

func TestSensors_PolledOnOpenAndEveryInterval(t *testing.T) {
	f := openSensorDevice(t, true, func(sim *transport.Simulator) {
		sim.SetSensors(transport.Reading{Temperature: 21.5, Humidity: 40.2})
	})

	r, ok := f.ctrl.Reading()
	require.True(t, ok)
	assert.InDelta(t, 21.5, r.Temperature, 1e-9)
	assert.InDelta(t, 40.2, r.Humidity, 1e-9)

	temp, ok := f.notifier.Measurement(notify.MeasureTemperature)
	require.True(t, ok)
	assert.InDelta(t, 21.5, temp, 1e-9)

	f.sim.SetSensors(transport.Reading{Temperature: 19, Humidity: 55.5})
	f.clock.Advance(59 * time.Second)
	assert.Equal(t, 1, f.reads())

	f.clock.Advance(time.Second)
	assert.Equal(t, 2, f.reads())
	hum, _ := f.notifier.Measurement(notify.MeasureHumidity)
	assert.InDelta(t, 55.5, hum, 1e-9)

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 4, f.reads())
}

func TestSensors_FailedPollKeepsLastReading(t *testing.T) {
	f := openSensorDevice(t, true, func(sim *transport.Simulator) {
		sim.SetSensors(transport.Reading{Temperature: 20, Humidity: 30})
	})

	f.sim.FailOn(transport.PhaseReadSensors, errors.New("no answer"))
	f.clock.Advance(time.Minute)

	r, ok := f.ctrl.Reading()
	require.True(t, ok)
	assert.InDelta(t, 20.0, r.Temperature, 1e-9)

	f.sim.FailOn(transport.PhaseReadSensors, nil)
	f.sim.SetSensors(transport.Reading{Temperature: 23, Humidity: 30})
	f.clock.Advance(time.Minute)

	r, _ = f.ctrl.Reading()
	assert.InDelta(t, 23.0, r.Temperature, 1e-9, "polling continues after a failure")
}

func TestSensors_NoDataYet(t *testing.T) {
	f := openSensorDevice(t, true, nil)

	_, ok := f.ctrl.Reading()
	assert.False(t, ok)
	_, ok = f.notifier.Measurement(notify.MeasureTemperature)
	assert.False(t, ok)
	assert.Equal(t, 1, f.reads())
}

func TestSensors_ModelWithoutSensorsNeverPolls(t *testing.T) {
	f := openSensorDevice(t, false, func(sim *transport.Simulator) {
		sim.SetSensors(transport.Reading{Temperature: 20, Humidity: 30})
	})

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, f.reads())
	_, ok := f.ctrl.Reading()
	assert.False(t, ok)
}

func TestSensors_CloseStopsPolling(t *testing.T) {
	f := openSensorDevice(t, true, func(sim *transport.Simulator) {
		sim.SetSensors(transport.Reading{Temperature: 20, Humidity: 30})
	})

	f.ctrl.Close()
	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, f.reads())
}
