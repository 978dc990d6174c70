package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
)

const (
	ttsEndpoint   = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	ttsSampleRate = 24000

	// 3000 is the engine's "ok" for a synthesis chunk.
	ttsSuccessCode = 3000
)

// VolcengineTTSClient synthesizes one text per WebSocket connection.
type VolcengineTTSClient struct {
	config   *speechmodel.SpeechConfig
	dialer   *websocket.Dialer
	endpoint string
	logger   zerolog.Logger
}

// NewVolcengineTTSClient creates a TTS client using cfg for credentials, the
// engine host and voice defaults.
func NewVolcengineTTSClient(cfg *speechmodel.SpeechConfig, logger zerolog.Logger) *VolcengineTTSClient {
	return &VolcengineTTSClient{
		config: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
		endpoint: resolveEndpoint(cfg, ttsEndpoint),
		logger:   logger.With().Str("component", "tts").Logger(),
	}
}

type ttsAudioParams struct {
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	EnableTimestamp bool    `json:"enable_timestamp"`
	SpeedRatio      float32 `json:"speed_ratio,omitempty"`
	VolumeRatio     float32 `json:"volume_ratio,omitempty"`
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// Synthesize returns the complete audio for req.Text. Speaker and resource
// candidates are tried in order while the engine reports a resource mismatch.
func (c *VolcengineTTSClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	var lastMismatch error
	for _, speaker := range resolveSpeakerCandidates(req.Voice, c.config.TTSVoice) {
		for _, resourceID := range resolveResourceCandidates(speaker) {
			resp, err := c.synthesizeWith(ctx, req, appID, token, speaker, resourceID)
			if err == nil {
				return resp, nil
			}
			if !isResourceMismatch(err) {
				return nil, err
			}
			c.logger.Debug().Str("speaker", speaker).Str("resource", resourceID).Msg("resource mismatch, trying next candidate")
			lastMismatch = err
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, unavailable("no speaker candidate for voice %q", req.Voice)
}

func (c *VolcengineTTSClient) synthesizeWith(ctx context.Context, req *speechmodel.TTSRequest, appID, token, speaker, resourceID string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, unavailable("dial tts: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.logger.Debug().Str("logid", logid).Str("speaker", speaker).Msg("connected")
		}
	}

	body := c.buildTTSRequest(req, speaker)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	frame, err := EncodeMessage(CreateFullClientRequest(payload, NoCompression))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, unavailable("send tts request: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, unavailable("tts: %w", ctx.Err())
			}
			return nil, unavailable("read tts response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, unavailable("decode tts frame: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			return nil, &EngineError{Service: "tts", Code: int(msg.ErrorCode), Message: string(payload)}

		case AudioOnlyServerResponse:
			chunk, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, unavailable("decompress audio chunk: %w", err)
			}
			audio.Write(chunk)

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, unavailable("decompress tts payload: %w", err)
			}

			var server ttsServerMessage
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &server); err != nil {
					c.logger.Warn().Err(err).Msg("unparseable tts payload skipped")
				} else {
					if server.Code != 0 && server.Code != ttsSuccessCode {
						return nil, &EngineError{Service: "tts", Code: server.Code, Message: server.Message}
					}
					if server.ReqID != "" {
						reqID = server.ReqID
					}
					if ms, err := strconv.ParseInt(server.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
					if server.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(server.Data)
						if err != nil {
							return nil, unavailable("decode base64 audio: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := msg.Header.MessageFlags == WithEvent && msg.EventType == EventTypeSessionFinished
			if finished || msg.IsLastPacket() || server.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, ErrEmptyAudio
				}
				if reqID == "" {
					reqID = connectID
				}
				return &speechmodel.TTSResponse{
					SessionID: req.SessionID,
					AudioData: audio.Bytes(),
					Duration:  duration,
					Format:    body.ReqParams.AudioParams.Format,
					RequestID: reqID,
					CreatedAt: time.Now().UTC(),
				}, nil
			}

		default:
			c.logger.Debug().Uint8("type", uint8(msg.Header.MessageType)).Msg("unexpected tts frame ignored")
		}
	}
}

func (c *VolcengineTTSClient) buildTTSRequest(req *speechmodel.TTSRequest, speaker string) *ttsRequest {
	r := &ttsRequest{}

	r.User.UID = strings.TrimSpace(req.SessionID)
	if r.User.UID == "" {
		r.User.UID = uuid.NewString()
	}

	r.ReqParams.Speaker = speaker
	if r.ReqParams.Speaker == "" {
		r.ReqParams.Speaker = strings.TrimSpace(c.config.TTSVoice)
	}
	r.ReqParams.Text = req.Text

	// The unidirectional endpoint has no wav output; mp3 is the playback format.
	format := strings.TrimSpace(req.Format)
	if format == "" || format == "wav" {
		format = "mp3"
	}
	r.ReqParams.AudioParams = ttsAudioParams{
		Format:          format,
		SampleRate:      ttsSampleRate,
		EnableTimestamp: true,
	}

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		r.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		r.ReqParams.AudioParams.VolumeRatio = volume
	}

	r.ReqParams.Language = strings.TrimSpace(req.Language)
	if r.ReqParams.Language == "" {
		r.ReqParams.Language = strings.TrimSpace(c.config.TTSLanguage)
	}

	// Markdown stays in the displayed turn; the spoken text is plain.
	r.ReqParams.Additions = `{"disable_markdown_filter":false}`

	return r
}

func isResourceMismatch(err error) bool {
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		return false
	}
	return strings.Contains(engineErr.Message, "resource ID is mismatched with speaker related resource")
}
