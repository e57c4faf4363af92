package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/settings"
	"github.com/roach88/rmlearn/internal/testutil"
)

func TestMulti_FansOut(t *testing.T) {
	a := testutil.NewRecordingNotifier(false)
	b := testutil.NewRecordingNotifier(true)
	m := notify.Multi{a, b}

	m.SetWarning("hello")
	m.Say("spoken")
	m.Trigger(notify.Event{Kind: notify.EventCommandSentAny, Command: "tv"})
	m.SetCapability(notify.CapLearnIR, true)

	for _, r := range []*testutil.RecordingNotifier{a, b} {
		assert.Equal(t, "hello", r.Warning())
		assert.Equal(t, []string{"spoken"}, r.Spoken())
		assert.Len(t, r.Events(), 1)
		assert.True(t, r.Capability(notify.CapLearnIR))
	}

	m.ClearWarning()
	assert.Empty(t, a.Warning())
	assert.True(t, m.SpeechAvailable())
	assert.False(t, notify.Multi{a}.SpeechAvailable())
	assert.False(t, notify.Multi{}.SpeechAvailable())
}

func TestConsole_PrintsWarningsAndSpeech(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsole(&buf, "living room", false)

	c.SetWarning("IR learning timed out")
	c.Say("press the button")
	c.Trigger(notify.Event{Kind: notify.EventCommandSentAny})
	c.SetCapability(notify.CapLearnIR, true)

	assert.Equal(t, "[living room] ! IR learning timed out\n[living room] > press the button\n", buf.String())
	assert.False(t, c.SpeechAvailable())
}

func TestLog_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := notify.NewLog(logger)

	l.SetWarning("careful")
	l.Trigger(notify.Event{Kind: notify.EventCommandSentSpecific, Command: "tv"})

	out := buf.String()
	assert.Contains(t, out, "msg=warning message=careful")
	assert.Contains(t, out, "event=command.sent.specific command=tv")
}

func TestJournal_AppendsEntries(t *testing.T) {
	st, err := settings.Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	j := notify.NewJournal(st, "dev1", nil)
	j.SetWarning("no free slot")
	j.Say("hold the button")
	j.Trigger(notify.Event{Kind: notify.EventCommandLearned, Command: "cmd1"})
	j.SetCapability(notify.CapLearnIR, true)
	j.ClearWarning()

	entries, err := st.Journal(context.Background(), "dev1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, notify.KindWarning, entries[0].Kind)
	assert.Equal(t, "no free slot", entries[0].Message)
	assert.Equal(t, notify.KindSpeech, entries[1].Kind)
	assert.Equal(t, notify.KindEvent, entries[2].Kind)
	assert.Equal(t, notify.EventCommandLearned, entries[2].Message)
	assert.Equal(t, "cmd1", entries[2].Token)
}

type failingWriter struct{}

func (failingWriter) AppendJournal(context.Context, settings.Entry) (int64, error) {
	return 0, errors.New("disk full")
}

func TestJournal_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	j := notify.NewJournal(failingWriter{}, "dev1", slog.New(slog.NewTextHandler(&buf, nil)))

	j.SetWarning("x")
	assert.True(t, strings.Contains(buf.String(), "journal append failed"))
}

func TestNotices_FlashClearsAfterTTL(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})
	rec := testutil.NewRecordingNotifier(false)
	n := notify.NewNotices(rec, clk)

	n.Flash("Stored command: cmd1", 5*time.Second)
	assert.Equal(t, "Stored command: cmd1", rec.Warning())

	clk.Advance(4999 * time.Millisecond)
	assert.Equal(t, "Stored command: cmd1", rec.Warning())

	clk.Advance(time.Millisecond)
	assert.Empty(t, rec.Warning())
}

func TestNotices_NewerFlashSurvivesOlderTimer(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})
	rec := testutil.NewRecordingNotifier(false)
	n := notify.NewNotices(rec, clk)

	n.Flash("first", 5*time.Second)
	clk.Advance(3 * time.Second)
	n.Flash("second", 5*time.Second)

	clk.Advance(2 * time.Second)
	assert.Equal(t, "second", rec.Warning(), "old timer must not clear the newer notice")

	clk.Advance(3 * time.Second)
	assert.Empty(t, rec.Warning())
}

func TestNotices_PromptPrefersSpeech(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})

	speaker := testutil.NewRecordingNotifier(true)
	notify.NewNotices(speaker, clk).Prompt("hold", 6*time.Second)
	assert.Equal(t, []string{"hold"}, speaker.Spoken())
	assert.Empty(t, speaker.Warnings())

	mute := testutil.NewRecordingNotifier(false)
	notify.NewNotices(mute, clk).Prompt("hold", 6*time.Second)
	assert.Empty(t, mute.Spoken())
	assert.Equal(t, "hold", mute.Warning())

	clk.Advance(6 * time.Second)
	assert.Empty(t, mute.Warning())
}

func TestNotices_Stop(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})
	rec := testutil.NewRecordingNotifier(false)
	n := notify.NewNotices(rec, clk)

	n.Flash("sticky", time.Second)
	n.Stop()
	clk.Advance(time.Minute)

	assert.Equal(t, "sticky", rec.Warning())
	assert.Equal(t, 0, clk.Pending())
}
