package speech

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecode(t *testing.T) {
	h := NewHeader(FullServerResponse, NegativeSequenceNumber, JSONSerialization, GzipCompression)

	raw := h.Encode()
	require.Len(t, raw, 4)
	assert.Equal(t, byte(0x11), raw[0])
	assert.Equal(t, byte(0x93), raw[1])
	assert.Equal(t, byte(0x11), raw[2])

	decoded, err := DecodeHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestDecodeHeaderRejectsShortAndUnknownVersion(t *testing.T) {
	_, err := DecodeHeader([]byte{0x11, 0x10})
	require.Error(t, err)

	_, err = DecodeHeader([]byte{0x21, 0x10, 0x10, 0x00})
	require.Error(t, err)
}

func TestFullClientRequestRoundTrip(t *testing.T) {
	payload := []byte(`{"user":{"uid":"abc"}}`)

	frame, err := EncodeMessage(CreateFullClientRequest(payload, NoCompression))
	require.NoError(t, err)

	msg, err := DecodeMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, FullClientRequest, msg.Header.MessageType)
	assert.Equal(t, JSONSerialization, msg.Header.SerializationMethod)
	assert.Equal(t, payload, msg.Payload)
	assert.False(t, msg.IsLastPacket())
}

func TestAudioOnlyRequestSequenceFlags(t *testing.T) {
	tests := []struct {
		name     string
		sequence int32
		isLast   bool
		flags    MessageFlags
		wantSeq  int32
		wantLast bool
	}{
		{name: "middle chunk", sequence: 3, flags: PositiveSequenceNumber, wantSeq: 3},
		{name: "last chunk", sequence: 4, isLast: true, flags: NegativeSequenceNumber, wantSeq: -4, wantLast: true},
		{name: "last without sequence", isLast: true, flags: LastPacketNoSequence, wantLast: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeMessage(CreateAudioOnlyRequest([]byte("pcm"), tt.sequence, tt.isLast, NoCompression))
			require.NoError(t, err)

			msg, err := DecodeMessage(bytes.NewReader(frame))
			require.NoError(t, err)
			assert.Equal(t, tt.flags, msg.Header.MessageFlags)
			assert.Equal(t, tt.wantSeq, msg.Sequence)
			assert.Equal(t, tt.wantLast, msg.IsLastPacket())
			assert.Equal(t, []byte("pcm"), msg.Payload)
		})
	}
}

func TestEventFrameRoundTrip(t *testing.T) {
	msg := &Message{
		Header:      NewHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		EventType:   EventTypeSessionFinished,
		SessionID:   "session-1",
		PayloadSize: 2,
		Payload:     []byte("{}"),
	}
	frame, err := EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := DecodeMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, EventTypeSessionFinished, decoded.EventType)
	assert.Equal(t, "session-1", decoded.SessionID)
	assert.Empty(t, decoded.ConnectID)

	msg = &Message{
		Header:    NewHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		EventType: EventTypeConnectionStarted,
		ConnectID: "conn-1",
	}
	frame, err = EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err = DecodeMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Empty(t, decoded.SessionID)
	assert.Equal(t, "conn-1", decoded.ConnectID)
	assert.Empty(t, decoded.Payload)
}

func TestErrorFrameCarriesCode(t *testing.T) {
	msg := &Message{
		Header:      NewHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
		ErrorCode:   45000001,
		PayloadSize: 4,
		Payload:     []byte("oops"),
	}
	frame, err := EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := DecodeMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, uint32(45000001), decoded.ErrorCode)
	assert.Equal(t, []byte("oops"), decoded.Payload)
}

func TestEncodeMessageRejectsSizeMismatch(t *testing.T) {
	msg := CreateFullClientRequest([]byte("abc"), NoCompression)
	msg.PayloadSize = 10

	_, err := EncodeMessage(msg)
	require.Error(t, err)
}

func TestDecodeMessageTruncatedPayload(t *testing.T) {
	frame, err := EncodeMessage(CreateFullClientRequest([]byte("abcdef"), NoCompression))
	require.NoError(t, err)

	_, err = DecodeMessage(bytes.NewReader(frame[:len(frame)-2]))
	require.Error(t, err)
}

func TestGzipRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("You can try: breathe. "), 20)

	compressed, err := CompressPayload(data, GzipCompression)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	restored, err := DecompressPayload(compressed, GzipCompression)
	require.NoError(t, err)
	assert.Equal(t, data, restored)

	same, err := CompressPayload(data, NoCompression)
	require.NoError(t, err)
	assert.Equal(t, data, same)

	_, err = CompressPayload(data, CompressionMethod(7))
	require.Error(t, err)
	_, err = DecompressPayload([]byte("not gzip"), GzipCompression)
	require.Error(t, err)
}
