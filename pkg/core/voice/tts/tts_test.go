package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartesia_SynthesizePostsTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts/bytes", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req cartesiaTTSRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello there.", req.Transcript)
		assert.Equal(t, "sonic-3", req.ModelID)
		assert.Equal(t, "voice-1", req.Voice.ID)
		assert.Equal(t, "wav", req.OutputFormat.Container)
		_, _ = w.Write([]byte("RIFFdata"))
	}))
	defer srv.Close()

	p := NewCartesiaWithClient("key", srv.Client()).WithBaseURL(srv.URL)
	out, err := p.Synthesize(context.Background(), "Hello there.", SynthesizeOptions{Voice: "voice-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), out.Audio)
	assert.Equal(t, "wav", out.Format)
}

func TestBuildOutputFormat(t *testing.T) {
	assert.Equal(t, cartesiaOutputFormat{Container: "mp3", SampleRate: 24000, BitRate: 128000}, buildOutputFormat(SynthesizeOptions{Format: "mp3"}))
	assert.Equal(t, cartesiaOutputFormat{Container: "raw", Encoding: "pcm_s16le", SampleRate: 16000}, buildOutputFormat(SynthesizeOptions{Format: "pcm", SampleRate: 16000}))
	assert.Equal(t, "wav", buildOutputFormat(SynthesizeOptions{}).Container)
}

func TestChatterbox_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts/generate", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		var req chatterboxRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi", req.Text)
		assert.Equal(t, "alice", req.VoiceID)
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("wav-bytes"))
	}))
	defer srv.Close()

	p := NewChatterbox(srv.URL+"/", "secret", "alice", srv.Client())
	out, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), out.Audio)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatterbox_ClientErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewChatterbox(srv.URL, "", "", srv.Client()).Synthesize(context.Background(), "hi", SynthesizeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad voice")
}

func TestElevenLabs_CollectsStreamedAudio(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		assert.True(t, strings.Contains(r.URL.Path, "voice-9"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var texts []string
		for i := 0; i < 3; i++ {
			var msg map[string]any
			require.NoError(t, conn.ReadJSON(&msg))
			texts = append(texts, msg["text"].(string))
		}
		assert.Equal(t, "Hello. ", texts[1])
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("ab"))})
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("cd"))})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/text-to-speech/{voice_id}/stream-input"
	p := NewElevenLabs("key", "voice-9").WithWSBaseURL(base)
	out, err := p.Synthesize(context.Background(), "Hello.", SynthesizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), out.Audio)
}

func TestElevenLabs_RequiresKeyAndVoice(t *testing.T) {
	_, err := NewElevenLabs("", "v").Synthesize(context.Background(), "x", SynthesizeOptions{})
	require.Error(t, err)
	_, err = NewElevenLabs("k", "").Synthesize(context.Background(), "x", SynthesizeOptions{})
	require.Error(t, err)
}

func TestDummy_ReturnsEmptyAudio(t *testing.T) {
	out, err := NewDummy().Synthesize(context.Background(), "anything", SynthesizeOptions{})
	require.NoError(t, err)
	assert.Empty(t, out.Audio)
}
