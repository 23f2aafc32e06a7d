package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// transcribeTimeout bounds one endpoint round trip.
const transcribeTimeout = 60 * time.Second

// slowTranscription is the latency above which a round trip gets a warning.
const slowTranscription = 2 * time.Second

// transcribeHTTPClient is shared across requests and forces HTTP/1.1.
// Some CDN-fronted endpoints send HTTP/2 GOAWAY frames mid-transfer which
// crash Go's h2 read-loop goroutine; disabling H2 avoids this.
var transcribeHTTPClient = &http.Client{
	Timeout: transcribeTimeout,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		TLSNextProto:    make(map[string]func(string, *tls.Conn) http.RoundTripper), // disable HTTP/2
	},
}

// TranscribeService posts recorded PCM to an OpenAI-compatible
// audio/transcriptions endpoint and returns the recognized text.
type TranscribeService struct {
	mu       sync.Mutex
	endpoint string
	model    string
	language string
	apiKey   func() string // returns "" when no key is configured
	client   *http.Client
}

// NewTranscribeService creates a service for cfg's endpoint. apiKey is
// consulted per request so key changes apply without a restart.
func NewTranscribeService(cfg Settings, apiKey func() string) *TranscribeService {
	return &TranscribeService{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		language: cfg.Language,
		apiKey:   apiKey,
		client:   transcribeHTTPClient,
	}
}

// Configure applies new endpoint settings at runtime.
func (s *TranscribeService) Configure(cfg Settings) {
	s.mu.Lock()
	s.endpoint = cfg.Endpoint
	s.model = cfg.Model
	s.language = cfg.Language
	s.mu.Unlock()
}

// Transcribe sends one PCM buffer and returns the cleaned text. An empty
// string (nil error) means the endpoint heard nothing usable.
func (s *TranscribeService) Transcribe(pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	s.mu.Lock()
	endpoint, model, language := s.endpoint, s.model, s.language
	s.mu.Unlock()
	key := ""
	if s.apiKey != nil {
		key = s.apiKey()
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("transcribe: form: %w", err)
	}
	if _, err := fw.Write(encodeWAV(pcm, audioSampleRate)); err != nil {
		return "", fmt.Errorf("transcribe: encode: %w", err)
	}
	mw.WriteField("model", model)            //nolint:errcheck
	mw.WriteField("response_format", "json") //nolint:errcheck
	if language != "" && language != "auto" {
		mw.WriteField("language", language) //nolint:errcheck
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("transcribe: form: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), transcribeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	t0 := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcribe: endpoint returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}

	latency := time.Since(t0)
	text := strings.TrimSpace(out.Text)
	if text == "" {
		zap.S().Debug("transcribe: empty result")
		return "", nil
	}
	if isHallucination(text) {
		zap.S().Debugf("transcribe: dropping artifact %q", text)
		return "", nil
	}
	if latency > slowTranscription {
		zap.S().Warnf("transcribe: slow round trip %dms for %q", latency.Milliseconds(), text)
	} else {
		zap.S().Infof("transcribe: %q (%dms)", text, latency.Milliseconds())
	}
	return text, nil
}

// Start consumes PCM buffers from jobs in a goroutine until the channel is
// closed. onDone is called once per job, success or failure, with the audio
// duration of the buffer; text is empty when nothing usable came back.
func (s *TranscribeService) Start(jobs <-chan []float32, onDone func(text string, audioDur time.Duration, err error)) {
	go func() {
		for pcm := range jobs {
			audioDur := time.Duration(len(pcm)) * time.Second / audioSampleRate
			text, err := s.Transcribe(pcm)
			if err != nil {
				zap.S().Warnf("transcribe: %v", err)
			}
			onDone(text, audioDur, err)
		}
	}()
}

// encodeWAV wraps float32 PCM in a 16-bit mono RIFF/WAVE container.
func encodeWAV(pcm []float32, rate int) []byte {
	dataLen := len(pcm) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen)) //nolint:errcheck
	buf.WriteString("WAVE")

	// fmt chunk: PCM, mono, 16-bit
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))     //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint16(1))      //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint16(1))      //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint32(rate))   //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint32(rate*2)) //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint16(2))      //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint16(16))     //nolint:errcheck

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen)) //nolint:errcheck

	data := make([]byte, dataLen)
	for i, s := range pcm {
		v := s
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	buf.Write(data)
	return buf.Bytes()
}

// isHallucination reports whether text is a recognizer artifact produced
// during silence or noise (e.g. "[BLANK_AUDIO]", "(Music)").
func isHallucination(s string) bool {
	tags := []string{
		"[BLANK_AUDIO]",
		"[blank_audio]",
		"(Music)",
		"(music)",
		"(noise)",
		"(Noise)",
		"[MUSIC]",
		"[Music]",
		"(clapping)",
		"(Applause)",
		"[silence]",
	}
	for _, tag := range tags {
		if s == tag {
			return true
		}
	}
	// Catch other bracketed/parenthesized tags that appear alone.
	return len(s) > 2 && ((s[0] == '[' && s[len(s)-1] == ']') || (s[0] == '(' && s[len(s)-1] == ')'))
}
