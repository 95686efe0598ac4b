package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu    sync.Mutex
	saves int
	last  int
	err   error
}

func (r *recordingPersister) Save(_ context.Context, s *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.last = len(s.Channels)
	return r.err
}

func newTestStore(t *testing.T) (*Store, *recordingPersister) {
	t.Helper()
	p := &recordingPersister{}
	return NewStore(nil, WithPersister(p)), p
}

func TestNewStoreHasOneChannelAndThread(t *testing.T) {
	s, _ := newTestStore(t)

	snap := s.Snapshot()
	require.Len(t, snap.Channels, 1)
	require.Len(t, snap.Channels[0].Threads, 1)
	assert.Equal(t, snap.Channels[0].ID, snap.CurrentChannelID)
	assert.Equal(t, snap.Channels[0].Threads[0].ID, snap.CurrentThreadID)
	assert.Equal(t, DefaultChannelName, snap.Channels[0].Name)
	assert.True(t, snap.Channels[0].Config.Stream)
	assert.Equal(t, DefaultTemperature, snap.Channels[0].Config.GenerationConfig.Temperature)
	assert.True(t, snap.Channels[0].Threads[0].UseChannelIcons)
	assert.True(t, snap.Channels[0].Threads[0].UseChannelFiles)
}

func TestDeleteLastChannelAndThreadIsRejected(t *testing.T) {
	s, p := newTestStore(t)
	before := s.Snapshot()

	err := s.DeleteChannel(before.CurrentChannelID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))

	err = s.DeleteThread(before.CurrentThreadID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 0, p.saves)
}

func TestAddChannelPrependsAndSelects(t *testing.T) {
	s, p := newTestStore(t)
	first := s.CurrentChannel()

	ch := s.AddChannel()
	assert.Equal(t, "Channel 2", ch.Name)

	snap := s.Snapshot()
	require.Len(t, snap.Channels, 2)
	assert.Equal(t, ch.ID, snap.Channels[0].ID)
	assert.Equal(t, first.ID, snap.Channels[1].ID)
	assert.Equal(t, ch.ID, snap.CurrentChannelID)
	assert.Equal(t, ch.Threads[0].ID, snap.CurrentThreadID)
	assert.Equal(t, 1, p.saves)
	assert.Equal(t, 2, p.last)

	require.NoError(t, s.DeleteChannel(ch.ID))
	snap = s.Snapshot()
	require.Len(t, snap.Channels, 1)
	assert.Equal(t, first.ID, snap.CurrentChannelID)
	assert.Equal(t, first.Threads[0].ID, snap.CurrentThreadID)
}

func TestAddThreadAndSelection(t *testing.T) {
	s, _ := newTestStore(t)
	ch := s.CurrentChannel()
	original := ch.Threads[0]

	th, err := s.AddThread(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Conversation 2", th.Name)
	assert.Equal(t, th.ID, s.CurrentThread().ID)

	// selecting the channel again is a no-op, selecting another channel and
	// back resets to the first thread
	other := s.AddChannel()
	require.NoError(t, s.SelectChannel(ch.ID))
	assert.Equal(t, th.ID, s.CurrentThread().ID)
	require.NoError(t, s.SelectThread(original.ID))
	assert.Equal(t, original.ID, s.CurrentThread().ID)

	require.NoError(t, s.SelectThread(other.Threads[0].ID))
	assert.Equal(t, other.ID, s.CurrentChannel().ID)

	require.NoError(t, s.SelectChannel(ch.ID))
	assert.Equal(t, th.ID, s.CurrentThread().ID, "selecting a channel resets to its first thread")

	require.NoError(t, s.DeleteThread(th.ID))
	assert.Equal(t, original.ID, s.CurrentThread().ID)

	err = s.SelectChannel("channel-missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAppendMessageAutoTitle(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.AppendMessage(RoleUser, []Part{TextPart("What is the capital of France, roughly?")})
	require.NoError(t, err)
	assert.Equal(t, 0, m.ActivePartIndex)

	th := s.CurrentThread()
	assert.Equal(t, "What is the capital ", th.Name)
	require.Len(t, th.History, 1)

	_, err = s.AppendMessage(RoleModel, []Part{TextPart("Paris")})
	require.NoError(t, err)
	assert.Equal(t, "What is the capital ", s.CurrentThread().Name)
}

func TestAppendMessageValidation(t *testing.T) {
	s, p := newTestStore(t)

	_, err := s.AppendMessage(RoleUser, nil)
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = s.AppendMessage(Role("system"), []Part{TextPart("x")})
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = s.AppendMessage(RoleUser, []Part{{}})
	assert.True(t, errors.Is(err, ErrValidation))

	assert.Empty(t, s.CurrentThread().History)
	assert.Equal(t, 0, p.saves)
}

func TestUpdateMessagePrimaryTextKeepsFiles(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.AppendMessage(RoleUser, []Part{
		TextPart("describe this"),
		FilePart("cat.png", "image/png", []byte{1, 2, 3}),
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMessagePrimaryText(m.ID, "describe this cat"))
	got, _, _, err := s.Message(m.ID)
	require.NoError(t, err)
	require.Len(t, got.Parts, 2)
	assert.Equal(t, "describe this cat", got.Parts[0].GetText())
	assert.True(t, got.Parts[1].IsFile())

	fileOnly, err := s.AppendMessage(RoleUser, []Part{FilePart("a.pdf", "application/pdf", []byte{9})})
	require.NoError(t, err)
	require.NoError(t, s.UpdateMessagePrimaryText(fileOnly.ID, "summarize"))
	got, _, _, err = s.Message(fileOnly.ID)
	require.NoError(t, err)
	require.Len(t, got.Parts, 2)
	assert.True(t, got.Parts[0].IsFile())
	assert.Equal(t, "summarize", got.Parts[1].GetText())
}

func TestUpdateMessagePrimaryTextTargetsActiveAlternative(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.AppendMessage(RoleModel, []Part{TextPart("A")})
	require.NoError(t, err)
	_, err = s.AppendAlternative(m.ID, "B")
	require.NoError(t, err)

	require.NoError(t, s.UpdateMessagePrimaryText(m.ID, "B2"))
	got, _, _, err := s.Message(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Parts[0].GetText())
	assert.Equal(t, "B2", got.Parts[1].GetText())
}

func TestAppendAlternative(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.AppendMessage(RoleModel, []Part{TextPart("A")})
	require.NoError(t, err)

	idx, err := s.AppendAlternative(m.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	got, _, _, err := s.Message(m.ID)
	require.NoError(t, err)
	require.Len(t, got.Parts, 2)
	assert.Equal(t, "A", got.Parts[0].GetText())
	assert.Equal(t, "B", got.Parts[1].GetText())
	assert.Equal(t, 1, got.ActivePartIndex)
}

func TestSetActivePartIndexTruncates(t *testing.T) {
	s, _ := newTestStore(t)

	m0, err := s.AppendMessage(RoleUser, []Part{TextPart("q")})
	require.NoError(t, err)
	m1, err := s.AppendMessage(RoleModel, []Part{TextPart("a1")})
	require.NoError(t, err)
	_, err = s.AppendAlternative(m1.ID, "a2")
	require.NoError(t, err)
	_, err = s.AppendMessage(RoleUser, []Part{TextPart("q2")})
	require.NoError(t, err)
	_, err = s.AppendMessage(RoleModel, []Part{TextPart("a3")})
	require.NoError(t, err)
	require.Len(t, s.CurrentThread().History, 4)

	before := s.Snapshot()
	err = s.SetActivePartIndex(m1.ID, 2)
	assert.True(t, errors.Is(err, ErrValidation))
	err = s.SetActivePartIndex(m1.ID, -1)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, before, s.Snapshot())

	require.NoError(t, s.SetActivePartIndex(m1.ID, 0))
	history := s.CurrentThread().History
	require.Len(t, history, 2)
	assert.Equal(t, m0.ID, history[0].ID)
	assert.Equal(t, m1.ID, history[1].ID)
	assert.Equal(t, 0, history[1].ActivePartIndex)
}

func TestDeleteAndInsertMessage(t *testing.T) {
	s, _ := newTestStore(t)

	u1, err := s.AppendMessage(RoleUser, []Part{TextPart("one")})
	require.NoError(t, err)
	u2, err := s.AppendMessage(RoleUser, []Part{TextPart("two")})
	require.NoError(t, err)

	reply, err := s.InsertMessageAfter(u1.ID, RoleModel, []Part{TextPart("r")})
	require.NoError(t, err)
	history := s.CurrentThread().History
	require.Len(t, history, 3)
	assert.Equal(t, []string{u1.ID, reply.ID, u2.ID}, []string{history[0].ID, history[1].ID, history[2].ID})

	require.NoError(t, s.DeleteMessage(reply.ID))
	require.Len(t, s.CurrentThread().History, 2)
	assert.True(t, errors.Is(s.DeleteMessage(reply.ID), ErrNotFound))
}

func TestMessagesTargetTheirOwnThread(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.AppendMessage(RoleModel, []Part{TextPart("")})
	require.NoError(t, err)
	home := s.CurrentThread().ID

	s.AddChannel()
	require.NoError(t, s.UpdateMessagePrimaryText(m.ID, "still here"))

	_, th, err := s.Thread(home)
	require.NoError(t, err)
	require.Len(t, th.History, 1)
	assert.Equal(t, "still here", th.History[0].ActiveText())
	assert.Empty(t, s.CurrentThread().History)
}

func TestReadAccessorsReturnCopies(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AppendMessage(RoleUser, []Part{TextPart("x")})
	require.NoError(t, err)

	th := s.CurrentThread()
	th.History[0].Parts[0] = TextPart("mutated")
	th.Name = "mutated"

	assert.Equal(t, "x", s.CurrentThread().History[0].ActiveText())
	assert.NotEqual(t, "mutated", s.CurrentThread().Name)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	s, p := newTestStore(t)
	p.err = errors.New("disk full")

	m, err := s.AppendMessage(RoleUser, []Part{TextPart("hello")})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Len(t, s.CurrentThread().History, 1)

	perr := s.LastPersistError()
	require.Error(t, perr)
	assert.True(t, errors.Is(perr, ErrPersistence))

	p.err = nil
	require.NoError(t, s.Persist())
	assert.NoError(t, s.LastPersistError())
}

func TestUpdateChannelConfigValidates(t *testing.T) {
	s, _ := newTestStore(t)
	ch := s.CurrentChannel()

	err := s.UpdateChannelConfig(ch.ID, func(cfg *ChannelConfig) {
		cfg.GenerationConfig.Temperature = 3
		cfg.Stream = false
	})
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, s.CurrentChannel().Config.Stream, "rejected update must not partially apply")

	model := "gemini-1.5-pro-latest"
	require.NoError(t, s.UpdateChannelConfig(ch.ID, func(cfg *ChannelConfig) {
		cfg.SelectedModel = &model
		cfg.Stream = false
	}))
	cfg := s.CurrentChannel().Config
	assert.Equal(t, model, cfg.Model())
	assert.False(t, cfg.Stream)
}

func TestIconsAndDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ch := s.CurrentChannel()
	th := s.CurrentThread()

	channelIcon := "channel.png"
	threadIcon := "thread.png"
	require.NoError(t, s.UpdateChannelUiSettings(ch.ID, IconSettings{UserIcon: &channelIcon}))
	require.NoError(t, s.UpdateThreadUiSettings(th.ID, IconSettings{UserIcon: &threadIcon}))

	icons, err := s.EffectiveIcons(th.ID)
	require.NoError(t, err)
	assert.Equal(t, channelIcon, *icons.UserIcon)

	require.NoError(t, s.SetThreadIconOverride(th.ID, true))
	icons, err = s.EffectiveIcons(th.ID)
	require.NoError(t, err)
	assert.Equal(t, threadIcon, *icons.UserIcon)

	require.NoError(t, s.UpdateDefaultChannelSettings(func(cfg *ChannelConfig) {
		cfg.Stream = false
		cfg.SystemPrompt = TogglePrompt{Enabled: true, Text: "be brief"}
	}))
	s.UpdateDefaultThreadSettings(ThreadDefaults{SystemPrompt: TogglePrompt{Enabled: true, Text: "thread"}})

	added := s.AddChannel()
	assert.False(t, added.Config.Stream)
	assert.Equal(t, "be brief", added.Config.SystemPrompt.Text)
	assert.Equal(t, "thread", added.Threads[0].SystemPrompt.Text)

	s.ResetDefaultSettings()
	assert.Equal(t, DefaultDefaultSettings(), s.DefaultSettings())
}

func TestSharedFiles(t *testing.T) {
	s, _ := newTestStore(t)
	ch := s.CurrentChannel()

	_, err := s.AddSharedFile(ch.ID, "notes.txt", "text/plain", nil)
	assert.True(t, errors.Is(err, ErrValidation))

	f, err := s.AddSharedFile(ch.ID, "notes.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, f.Size)
	require.Len(t, s.CurrentChannel().SharedFiles, 1)

	require.NoError(t, s.RemoveSharedFile(ch.ID, f.ID))
	assert.Empty(t, s.CurrentChannel().SharedFiles)
	assert.True(t, errors.Is(s.RemoveSharedFile(ch.ID, f.ID), ErrNotFound))
}

func TestSearchOneHitPerThread(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AppendMessage(RoleUser, []Part{TextPart("Tell me about Go channels")})
	require.NoError(t, err)
	m, err := s.AppendMessage(RoleModel, []Part{TextPart("go channels are typed conduits")})
	require.NoError(t, err)
	_, err = s.AppendAlternative(m.ID, "unrelated")
	require.NoError(t, err)

	hits := s.Search("CHANNELS")
	require.Len(t, hits, 1)
	assert.Equal(t, "Tell me about Go channels", hits[0].HitText)

	assert.Empty(t, s.Search("typed conduits"), "inactive alternatives are not searched")
	assert.Nil(t, s.Search(""))
}

func TestImportReplacesState(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AppendMessage(RoleUser, []Part{TextPart("old")})
	require.NoError(t, err)

	imported := NewState()
	imported.Channels[0].Name = "Imported"
	s.Import(imported)

	snap := s.Snapshot()
	require.Len(t, snap.Channels, 1)
	assert.Equal(t, "Imported", snap.Channels[0].Name)
	assert.Empty(t, s.CurrentThread().History)

	s.Import(&State{})
	snap = s.Snapshot()
	require.Len(t, snap.Channels, 1)
	require.Len(t, snap.Channels[0].Threads, 1)
	assert.Equal(t, snap.Channels[0].ID, snap.CurrentChannelID)
}
