package assistant

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/emotion-voice/backend/internal/model/emotion"
	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	assistantsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/assistant"
	chatsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/chat"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/voice"
)

type fakeRecognizer struct {
	mu     sync.Mutex
	text   string
	err    error
	format string
}

func (f *fakeRecognizer) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.ASRResponse{SessionID: sessionID, Text: f.text}, nil
}

func (f *fakeRecognizer) lastFormat() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

type fakeSynthesizer struct{}

func (fakeSynthesizer) SynthesizeToBuffer(ctx context.Context, sessionID, text, v, language string) (*speechmodel.TTSResponse, error) {
	return &speechmodel.TTSResponse{SessionID: sessionID, AudioData: []byte("ID3" + text), Format: "mp3"}, nil
}

type testEnv struct {
	router     *chi.Mux
	recognizer *fakeRecognizer
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()

	store := emotion.NewMemoryStore([]emotion.Entry{
		{Emotion: "Happy", SuggestedAction: "Share your joy", PsychologicalInsight: "Reinforces positive affect"},
		{Emotion: "Sad", SuggestedAction: "Call a friend", PsychologicalInsight: "Connection eases grief"},
	})
	sessions := chatsvc.NewService()
	clips := playback.NewStore()
	recognizer := &fakeRecognizer{}

	ctl := assistantsvc.NewController(assistantsvc.Deps{
		Store:    store,
		Sessions: sessions,
		Input:    voice.NewInput(recognizer, zerolog.Nop()),
		Output:   voice.NewOutput(fakeSynthesizer{}, clips, voice.WithTempDir(t.TempDir())),
		Clips:    clips,
		Logger:   zerolog.Nop(),
	})

	r := chi.NewRouter()
	New(ctl, sessions, clips, zerolog.Nop()).RegisterRoutes(r)
	return &testEnv{router: r, recognizer: recognizer}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions/", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var view assistantsvc.View
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if view.SessionID == "" {
		t.Fatal("missing session id")
	}
	if view.ExportAvailable {
		t.Fatal("new session should not offer export")
	}
	return view.SessionID
}

func TestOptions(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodGet, "/emotions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var opts assistantsvc.Options
	if err := json.NewDecoder(rr.Body).Decode(&opts); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if opts.Placeholder != "Choose..." || len(opts.Labels) != 2 || opts.Labels[0] != "Happy" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestSelectSubmitAndView(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/selection", []byte(`{"emotion":"Happy"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("select: expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", rr.Code)
	}
	var first assistantsvc.SubmitResult
	if err := json.NewDecoder(rr.Body).Decode(&first); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if first.Turn == nil || first.Turn.User != "**User:** I feel happy." {
		t.Fatalf("unexpected turn: %+v", first.Turn)
	}
	if first.Clip == nil {
		t.Fatal("expected a clip")
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/submit", []byte(`{"emotion":"Sad"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+id, nil)
	var view assistantsvc.View
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(view.History) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(view.History))
	}
	if view.History[0].User != "**User:** I feel sad." {
		t.Fatalf("newest turn should come first, got %q", view.History[0].User)
	}
	if !view.ExportAvailable || view.SelectedEmotion != "Sad" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.LatestClip == nil {
		t.Fatal("expected latest clip in view")
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+id+"/audio/"+view.LatestClip.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("audio: expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mp3" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "ID3You can try: Call a friend.") {
		t.Fatalf("unexpected audio body %q", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+id+"/audio/"+first.Clip.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("replaced clip: expected 404, got %d", rr.Code)
	}
}

func TestSubmitWithoutSelection(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/submit", []byte(`{"emotion":"Choose..."}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res assistantsvc.SubmitResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if res.Turn != nil || len(res.View.History) != 0 {
		t.Fatalf("submit without selection must not append: %+v", res)
	}
}

func TestUnknownEmotionRejected(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/selection", []byte(`{"emotion":"Bored"}`))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("select: expected 422, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/submit", []byte(`{"emotion":"Bored"}`))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("submit: expected 422, got %d", rr.Code)
	}
	var res assistantsvc.SubmitResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(res.Advisories) != 1 || res.Advisories[0].Kind != assistantsvc.AdvisoryWarning {
		t.Fatalf("expected one warning advisory, got %+v", res.Advisories)
	}
}

func TestUnknownSession(t *testing.T) {
	env := setupRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/missing"},
		{http.MethodPost, "/sessions/missing/submit"},
		{http.MethodGet, "/sessions/missing/export"},
		{http.MethodGet, "/sessions/missing/voice/ws"},
		{http.MethodGet, "/sessions/missing/audio/nope"},
	} {
		rr := env.do(t, tc.method, tc.path, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestVoiceUpload(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)
	env.recognizer.text = "happy"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write([]byte("audio")); err != nil {
		t.Fatalf("write audio err: %v", err)
	}
	_ = writer.WriteField("language", "en-US")
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/voice", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res assistantsvc.VoiceResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if res.Heard != "happy" || res.SelectedEmotion != "Happy" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if env.recognizer.lastFormat() != "webm" {
		t.Fatalf("expected webm format, got %s", env.recognizer.lastFormat())
	}
}

func TestExport(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	rr := env.do(t, http.MethodGet, "/sessions/"+id+"/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "User,Assistant\n" {
		t.Fatalf("empty export should be header only, got %q", rr.Body.String())
	}

	env.do(t, http.MethodPost, "/sessions/"+id+"/submit", []byte(`{"emotion":"Happy"}`))
	env.do(t, http.MethodPost, "/sessions/"+id+"/submit", []byte(`{"emotion":"Sad"}`))

	rr = env.do(t, http.MethodGet, "/sessions/"+id+"/export", nil)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "emotion_chat_history.csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv err: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[1][0] != "**User:** I feel happy." || records[2][0] != "**User:** I feel sad." {
		t.Fatalf("export must keep append order: %v", records)
	}
}
