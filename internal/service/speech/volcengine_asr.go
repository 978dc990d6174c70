package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
)

const (
	asrEndpoint           = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	asrResourceHourly     = "volc.bigasr.sauc.duration"
	asrResourceConcurrent = "volc.bigasr.sauc.concurrent"

	// 16kHz, 16bit, mono: 200ms of audio per chunk.
	asrChunkSize     = 6400
	asrChunkInterval = 200 * time.Millisecond

	asrSuccessCode = 20000000
)

// VolcengineASRClient transcribes one utterance per WebSocket connection.
type VolcengineASRClient struct {
	config        *speechmodel.SpeechConfig
	dialer        *websocket.Dialer
	endpoint      string
	chunkInterval time.Duration
	logger        zerolog.Logger
}

// NewVolcengineASRClient creates an ASR client using cfg for credentials and
// the engine host.
func NewVolcengineASRClient(cfg *speechmodel.SpeechConfig, logger zerolog.Logger) *VolcengineASRClient {
	return &VolcengineASRClient{
		config: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
		endpoint:      resolveEndpoint(cfg, asrEndpoint),
		chunkInterval: asrChunkInterval,
		logger:        logger.With().Str("component", "asr").Logger(),
	}
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

// Transcribe sends the whole utterance and waits for the final transcript.
// An empty transcript is not an error; the caller decides what silence means.
func (c *VolcengineASRClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	if req.AudioData == nil {
		return nil, ErrNoAudio
	}
	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	connectID := strings.TrimSpace(req.SessionID)
	if connectID == "" {
		connectID = uuid.NewString()
	}

	resourceID := asrResourceHourly
	if c.config.ConcurrentMode {
		resourceID = asrResourceConcurrent
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, unavailable("dial asr: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.logger.Debug().Str("logid", logid).Str("session", req.SessionID).Msg("connected")
		}
	}

	payload, err := json.Marshal(c.buildASRRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal asr request: %w", err)
	}
	if err := c.writeFrame(conn, CreateFullClientRequest, payload); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reading runs alongside sending so an early engine error stops the upload.
	type result struct {
		resp *speechmodel.ASRResponse
		err  error
	}
	recvCh := make(chan result, 1)
	go func() {
		r, err := c.receive(ctx, conn, req.SessionID)
		recvCh <- result{resp: r, err: err}
	}()

	sendCh := make(chan error, 1)
	go func() {
		sendCh <- c.sendAudio(ctx, conn, audio)
	}()

	for {
		select {
		case err := <-sendCh:
			if err != nil {
				return nil, err
			}
			sendCh = nil
		case r := <-recvCh:
			return r.resp, r.err
		case <-ctx.Done():
			return nil, unavailable("asr: %w", ctx.Err())
		}
	}
}

func (c *VolcengineASRClient) writeFrame(conn *websocket.Conn, build func([]byte, CompressionMethod) *Message, payload []byte) error {
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return err
	}
	frame, err := EncodeMessage(build(compressed, GzipCompression))
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return unavailable("send asr request: %w", err)
	}
	return nil
}

func (c *VolcengineASRClient) buildASRRequest(req *speechmodel.ASRRequest) *asrRequest {
	r := &asrRequest{}
	r.User.UID = req.SessionID

	r.Audio.Format = strings.TrimSpace(req.Format)
	if r.Audio.Format == "" {
		r.Audio.Format = "wav"
	}
	r.Audio.Language = strings.TrimSpace(req.Language)
	if r.Audio.Language == "" {
		r.Audio.Language = c.config.ASRLanguage
	}
	r.Audio.Codec = "raw"
	r.Audio.Rate = 16000
	r.Audio.Bits = 16
	r.Audio.Channel = 1

	r.Request.ModelName = "bigmodel"
	r.Request.EnableITN = true
	// Single-word answers are matched against labels; punctuation gets in the way.
	r.Request.EnablePunc = false
	r.Request.ShowUtterances = true
	r.Request.ResultType = "full"
	r.Request.EndWindowSize = 800
	return r
}

// sendAudio uploads audio in fixed-size chunks paced like a live microphone.
// Sequence 1 belongs to the full client request, so audio starts at 2.
func (c *VolcengineASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	sequence := int32(2)
	for start := 0; start < len(audio); start += asrChunkSize {
		end := min(start+asrChunkSize, len(audio))
		isLast := end == len(audio)

		compressed, err := CompressPayload(audio[start:end], GzipCompression)
		if err != nil {
			return err
		}
		frame, err := EncodeMessage(CreateAudioOnlyRequest(compressed, sequence, isLast, GzipCompression))
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return unavailable("send audio chunk %d: %w", sequence, err)
		}
		sequence++

		if isLast {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.chunkInterval):
		}
	}
	return nil
}

func (c *VolcengineASRClient) receive(ctx context.Context, conn *websocket.Conn, sessionID string) (*speechmodel.ASRResponse, error) {
	var (
		text     string
		duration int64
	)

	for ctx.Err() == nil {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, unavailable("read asr response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, unavailable("decode asr frame: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			return nil, &EngineError{Service: "asr", Code: int(msg.ErrorCode), Message: string(payload)}

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, unavailable("decompress asr payload: %w", err)
			}

			var server asrServerMessage
			if err := json.Unmarshal(payload, &server); err != nil {
				c.logger.Warn().Err(err).Msg("unparseable asr payload skipped")
				continue
			}
			if server.Code != 0 && server.Code != asrSuccessCode {
				return nil, &EngineError{Service: "asr", Code: server.Code, Message: server.Message}
			}

			if candidate := server.Result.Text; candidate != "" {
				text = candidate
			} else if len(server.Result.Utterances) > 0 {
				text = joinUtterances(server.Result.Utterances)
			}
			if server.AudioInfo.Duration > 0 {
				duration = server.AudioInfo.Duration
			}

			if msg.IsLastPacket() || server.Sequence < 0 {
				return &speechmodel.ASRResponse{
					SessionID:  sessionID,
					Text:       strings.TrimSpace(text),
					Confidence: estimateASRConfidence(text),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now().UTC(),
				}, nil
			}
		}
	}
	return nil, ctx.Err()
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func estimateASRConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
