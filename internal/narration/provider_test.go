package narration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/soil"
)

var recovering = soil.Reading{RadiationLevel: 45, MyceliumDensity: 65, SoilStructure: 55, WaterRetention: 60}

func TestNewWithoutKeyIsOffline(t *testing.T) {
	t.Setenv("SOILPULSE_NO_KEY", "")
	cfg := config.Default().Narration
	cfg.APIKeyEnv = "SOILPULSE_NO_KEY"
	p := New(cfg, logging.Discard())
	if _, ok := p.(Offline); !ok {
		t.Fatalf("expected Offline provider, got %T", p)
	}
	imm, ok := p.(Immediate)
	if !ok {
		t.Fatalf("offline provider should answer immediately")
	}
	text, ok := imm.Immediate(soil.StatusReady, recovering)
	if !ok || text != OfflineMessage {
		t.Errorf("Immediate() = %q, %v", text, ok)
	}
	if got := p.Narrate(context.Background(), soil.StatusReady, recovering); got != OfflineMessage {
		t.Errorf("Narrate() = %q", got)
	}
}

func TestNewOfflineProvider(t *testing.T) {
	cfg := config.Default().Narration
	cfg.Provider = config.ProviderOffline
	if _, ok := New(cfg, nil).(Offline); !ok {
		t.Fatalf("expected Offline provider")
	}
}

func TestNewGeminiWithKey(t *testing.T) {
	t.Setenv("SOILPULSE_KEY", "k")
	cfg := config.Default().Narration
	cfg.APIKeyEnv = "SOILPULSE_KEY"
	if _, ok := New(cfg, logging.Discard()).(*Gemini); !ok {
		t.Fatalf("expected *Gemini provider")
	}
}

func TestPromptsCarryReadings(t *testing.T) {
	up := UserPrompt(recovering)
	for _, want := range []string{"Radiation: 45", "Mycelium Density: 65%", "Integrity: 55%", "Water Retention: 60%"} {
		if !strings.Contains(up, want) {
			t.Errorf("user prompt missing %q:\n%s", want, up)
		}
	}
	sp := SystemPrompt(soil.StatusUnsafe)
	if !strings.Contains(sp, "Current Soil Status: UNSAFE") || !strings.Contains(sp, "2-3 sentences") {
		t.Errorf("unexpected system prompt:\n%s", sp)
	}
}

func geminiServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.GenerationConfig.MaxOutputTokens != 150 {
			t.Errorf("max tokens = %d", req.GenerationConfig.MaxOutputTokens)
		}
		if len(req.Contents) != 1 || !strings.Contains(req.Contents[0].Parts[0].Text, "Radiation: 45") {
			t.Errorf("request does not carry readings: %+v", req.Contents)
		}
		if req.SystemInstruction == nil || !strings.Contains(req.SystemInstruction.Parts[0].Text, "RECOVERING") {
			t.Errorf("request does not carry status")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func testGemini(url string) *Gemini {
	cfg := config.Default().Narration
	cfg.Endpoint = url
	cfg.Timeout = 2 * time.Second
	cfg.RatePerSecond = 100
	return NewGemini(cfg, "test-key", nil, logging.Discard())
}

func TestGeminiSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Mycelium is working. "},{"text":"Wait."}]}}]}`, &calls)
	defer srv.Close()

	got := testGemini(srv.URL).Narrate(context.Background(), soil.StatusRecovering, recovering)
	if got != "Mycelium is working. Wait." {
		t.Errorf("Narrate() = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one request, got %d", calls.Load())
	}
}

func TestGeminiFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, http.StatusInternalServerError, `{"error":"boom"}`, &calls)
	defer srv.Close()

	got := testGemini(srv.URL).Narrate(context.Background(), soil.StatusRecovering, recovering)
	if got != FailedMessage {
		t.Errorf("Narrate() = %q, want failure fallback", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestGeminiEmptyText(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, http.StatusOK, `{"candidates":[]}`, &calls)
	defer srv.Close()

	if got := testGemini(srv.URL).Narrate(context.Background(), soil.StatusRecovering, recovering); got != EmptyMessage {
		t.Errorf("Narrate() = %q, want empty fallback", got)
	}
}

func TestGeminiUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if got := testGemini(url).Narrate(context.Background(), soil.StatusReady, recovering); got != FailedMessage {
		t.Errorf("Narrate() = %q, want failure fallback", got)
	}
}

func TestClaudeCLI(t *testing.T) {
	var gotArgs []string
	c := &ClaudeCLI{bin: "claude", log: logging.Discard(), run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("  Soil is ready for planting.\n"), nil
	}}
	if got := c.Narrate(context.Background(), soil.StatusReady, recovering); got != "Soil is ready for planting." {
		t.Errorf("Narrate() = %q", got)
	}
	if len(gotArgs) != 3 || gotArgs[0] != "--print" || !strings.Contains(gotArgs[2], "Current Soil Status: READY") {
		t.Errorf("unexpected args %v", gotArgs)
	}

	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("auth error"), errors.New("exit status 1")
	}
	if got := c.Narrate(context.Background(), soil.StatusReady, recovering); got != FailedMessage {
		t.Errorf("Narrate() = %q, want failure fallback", got)
	}

	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil }
	if got := c.Narrate(context.Background(), soil.StatusReady, recovering); got != EmptyMessage {
		t.Errorf("Narrate() = %q, want empty fallback", got)
	}
}
