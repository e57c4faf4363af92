package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/rmlearn/internal/settings"
)

// Journal entry kinds.
const (
	KindWarning = "warning"
	KindSpeech  = "speech"
	KindEvent   = "event"
)

const journalWriteTimeout = 5 * time.Second

// JournalWriter appends journal entries. Implemented by *settings.Store.
type JournalWriter interface {
	AppendJournal(ctx context.Context, e settings.Entry) (int64, error)
}

// Journal records warnings, speech and trigger events of one device in
// the settings journal. Capability changes, measurements and warning
// clears are not recorded.
type Journal struct {
	w        JournalWriter
	deviceID string
	logger   *slog.Logger
}

// NewJournal creates a Journal notifier for deviceID.
func NewJournal(w JournalWriter, deviceID string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{w: w, deviceID: deviceID, logger: logger}
}

func (j *Journal) SetWarning(msg string) {
	j.append(KindWarning, msg, "")
}

func (j *Journal) ClearWarning() {}

func (j *Journal) Say(msg string) {
	j.append(KindSpeech, msg, "")
}

func (j *Journal) SpeechAvailable() bool { return false }

func (j *Journal) Trigger(ev Event) {
	j.append(KindEvent, ev.Kind, ev.Command)
}

func (j *Journal) SetCapability(string, bool) {}

func (j *Journal) SetMeasurement(string, float64) {}

func (j *Journal) append(kind, msg, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	_, err := j.w.AppendJournal(ctx, settings.Entry{
		DeviceID: j.deviceID,
		Kind:     kind,
		Message:  msg,
		Token:    token,
	})
	if err != nil {
		j.logger.Warn("journal append failed", "device", j.deviceID, "kind", kind, "error", err)
	}
}
