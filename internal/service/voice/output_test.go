package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	speechsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/speech"
)

type fakeSynthesizer struct {
	audio []byte
	err   error
	calls int
	text  string
	voice string
}

func (f *fakeSynthesizer) SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speechmodel.TTSResponse, error) {
	f.calls++
	f.text = text
	f.voice = voice
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{SessionID: sessionID, AudioData: f.audio, Format: "mp3"}, nil
}

type recordingSurface struct {
	path     string
	mime     string
	contents []byte
	err      error
}

func (s *recordingSurface) Present(ctx context.Context, sessionID, path, mime string) (playback.Clip, error) {
	s.path = path
	s.mime = mime
	s.contents, _ = os.ReadFile(path)
	if s.err != nil {
		return playback.Clip{}, s.err
	}
	return playback.Clip{ID: "clip-1", SessionID: sessionID, MIME: mime, Data: s.contents}, nil
}

func TestSpeakStagesAndRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynthesizer{audio: []byte("ID3audio")}
	surface := &recordingSurface{}
	out := NewOutput(synth, surface, WithTempDir(dir), WithVoice("warm"))

	clip, err := out.Speak(context.Background(), "s1", "You can try: breathe. Because it helps")
	require.NoError(t, err)
	assert.Equal(t, "clip-1", clip.ID)
	assert.Equal(t, "warm", synth.voice)

	assert.Equal(t, []byte("ID3audio"), surface.contents)
	assert.Equal(t, playback.MIMETypeMP3, surface.mime)
	assert.Equal(t, ".mp3", filepath.Ext(surface.path))
	assert.Equal(t, dir, filepath.Dir(surface.path))

	_, err = os.Stat(surface.path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp file should be removed")
}

func TestSpeakRemovesTempFileWhenSurfaceFails(t *testing.T) {
	dir := t.TempDir()
	surface := &recordingSurface{err: errors.New("player gone")}
	out := NewOutput(&fakeSynthesizer{audio: []byte("ID3")}, surface, WithTempDir(dir))

	_, err := out.Speak(context.Background(), "s1", "hello")
	require.ErrorIs(t, err, ErrSynthesis)
	require.NotEmpty(t, surface.path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpeakRejectsEmptyTextWithoutCallingEngine(t *testing.T) {
	synth := &fakeSynthesizer{audio: []byte("ID3")}
	out := NewOutput(synth, &recordingSurface{}, WithTempDir(t.TempDir()))

	_, err := out.Speak(context.Background(), "s1", "  ")
	assert.ErrorIs(t, err, ErrSynthesis)
	assert.ErrorIs(t, err, speechsvc.ErrEmptyText)
	assert.Zero(t, synth.calls)
}

func TestSpeakEngineFailures(t *testing.T) {
	dir := t.TempDir()

	out := NewOutput(&fakeSynthesizer{err: speechsvc.ErrEngineUnavailable}, &recordingSurface{}, WithTempDir(dir))
	_, err := out.Speak(context.Background(), "s1", "hello")
	assert.ErrorIs(t, err, ErrSynthesis)
	assert.ErrorIs(t, err, speechsvc.ErrEngineUnavailable)

	surface := &recordingSurface{}
	out = NewOutput(&fakeSynthesizer{}, surface, WithTempDir(dir))
	_, err = out.Speak(context.Background(), "s1", "hello")
	assert.ErrorIs(t, err, ErrSynthesis)
	assert.Empty(t, surface.path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpeakWithPlaybackStore(t *testing.T) {
	store := playback.NewStore()
	out := NewOutput(&fakeSynthesizer{audio: []byte("ID3")}, store, WithTempDir(t.TempDir()))

	clip, err := out.Speak(context.Background(), "s1", "hello")
	require.NoError(t, err)

	latest, ok := store.Latest("s1")
	require.True(t, ok)
	assert.Equal(t, clip.ID, latest.ID)
	assert.Equal(t, []byte("ID3"), latest.Data)
}
