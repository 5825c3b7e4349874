package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"leadscout/internal/enrich"
	"leadscout/internal/testsupport"
)

type fakeCompleter struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= len(f.responses) {
		return f.responses[f.calls-1], nil
	}
	return `{"results":[]}`, nil
}

func TestAnalyzePendingScoresItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedItem(t, st, "a", "t2_a")
	testsupport.SeedItem(t, st, "b", "t2_b")

	completer := &fakeCompleter{responses: []string{
		`{"results":[
			{"id":"a","relevance_score":8.5,"theme":"code review","summary":"wants tooling","tags":["ci","tooling"],"rationale":"asks for product"},
			{"id":"b","relevance_score":2,"theme":"chatter","summary":"general talk","tags":[],"rationale":"no signal"}
		]}`,
	}}
	analyzer := enrich.NewAnalyzer(st, completer, 10, nil)

	ctx := context.Background()
	result, err := analyzer.AnalyzePending(ctx)
	if err != nil {
		t.Fatalf("AnalyzePending failed: %v", err)
	}
	if result.Analyzed != 2 || result.Scored != 2 || result.Zeroed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	item, err := st.GetItem(ctx, "a")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.RelevanceScore == nil || *item.RelevanceScore != 8.5 {
		t.Fatalf("unexpected score: %#v", item.RelevanceScore)
	}
	if item.Theme != "code review" {
		t.Fatalf("unexpected theme %q", item.Theme)
	}
	if got := item.TagList(); len(got) != 2 {
		t.Fatalf("unexpected tags: %v", got)
	}
}

func TestAnalyzePendingZeroesOmittedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedItem(t, st, "a", "t2_a")
	testsupport.SeedItem(t, st, "b", "t2_b")

	completer := &fakeCompleter{responses: []string{
		`{"results":[{"id":"a","relevance_score":7,"theme":"x","summary":"y","tags":[],"rationale":"z"}]}`,
	}}
	analyzer := enrich.NewAnalyzer(st, completer, 10, nil)

	ctx := context.Background()
	result, err := analyzer.AnalyzePending(ctx)
	if err != nil {
		t.Fatalf("AnalyzePending failed: %v", err)
	}
	if result.Zeroed != 1 || result.Scored != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	item, err := st.GetItem(ctx, "b")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Analyzed() {
		t.Fatal("omitted item must still be marked analyzed")
	}
	if item.RelevanceScore == nil || *item.RelevanceScore != 0 {
		t.Fatalf("expected zero score, got %#v", item.RelevanceScore)
	}
}

func TestAnalyzePendingBatchFailureZeroScoresBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedItem(t, st, "a", "t2_a")

	completer := &fakeCompleter{err: errors.New("model down")}
	analyzer := enrich.NewAnalyzer(st, completer, 10, nil)

	ctx := context.Background()
	result, err := analyzer.AnalyzePending(ctx)
	if err != nil {
		t.Fatalf("failed batch must not abort the run: %v", err)
	}
	if result.Zeroed != 1 || result.Scored != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	pending, err := st.UnanalyzedItems(ctx, 0)
	if err != nil {
		t.Fatalf("UnanalyzedItems failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("failed batch must not stay pending, got %d", len(pending))
	}

	item, err := st.GetItem(ctx, "a")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.RelevanceScore == nil || *item.RelevanceScore != 0 {
		t.Fatalf("expected zero score, got %#v", item.RelevanceScore)
	}
}

func TestAnalyzePendingStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedItem(t, st, "a", "t2_a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completer := &fakeCompleter{err: errors.New("model down")}
	analyzer := enrich.NewAnalyzer(st, completer, 10, nil)
	if _, err := analyzer.AnalyzePending(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}

	pending, err := st.UnanalyzedItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("UnanalyzedItems failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatal("cancelled run must leave items pending")
	}
}

func TestAnalyzePendingProcessesMultipleBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	for i := 0; i < 3; i++ {
		testsupport.SeedItem(t, st, fmt.Sprintf("item%d", i), fmt.Sprintf("t2_%d", i))
	}

	completer := &fakeCompleter{responses: []string{
		`{"results":[]}`, `{"results":[]}`, `{"results":[]}`,
	}}
	analyzer := enrich.NewAnalyzer(st, completer, 2, nil)

	result, err := analyzer.AnalyzePending(context.Background())
	if err != nil {
		t.Fatalf("AnalyzePending failed: %v", err)
	}
	if result.Batches != 2 || result.Analyzed != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`)
	}))
	defer server.Close()

	client := enrich.NewClient(
		enrich.ClientConfig{APIKey: "test", BaseURL: server.URL, Model: "test-model"},
		enrich.WithSleeper(func(time.Duration) {}),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry, got %d calls", calls.Load())
	}
}

func TestClientDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := enrich.NewClient(enrich.ClientConfig{APIKey: "bad", BaseURL: server.URL, Model: "test-model"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected auth error")
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestDecodeModelJSONHandlesFences(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	fenced := "```json\n{\"ok\":true}\n```"
	if err := enrich.DecodeModelJSON(fenced, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON failed: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok true")
	}
	if err := enrich.DecodeModelJSON("", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestAnalyzePendingSubmitsImageText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	item := testsupport.SeedItem(t, st, "img", "t2_img")
	item.OCRText = "pricing page screenshot"
	if err := st.ReplaceAuthorItem(context.Background(), "t2_img", item); err != nil {
		t.Fatalf("ReplaceAuthorItem failed: %v", err)
	}

	completer := &fakeCompleter{}
	analyzer := enrich.NewAnalyzer(st, completer, 10, nil)
	if _, err := analyzer.AnalyzePending(context.Background()); err != nil {
		t.Fatalf("AnalyzePending failed: %v", err)
	}
	if len(completer.prompts) == 0 || !strings.Contains(completer.prompts[0], "pricing page screenshot") {
		t.Fatalf("expected transcribed text in prompt, got %q", completer.prompts)
	}
}

func TestExtractImageText(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"text\":\"limited time offer\"}"}}]}`)
	}))
	defer server.Close()

	client := enrich.NewClient(enrich.ClientConfig{APIKey: "test", BaseURL: server.URL, Model: "test-model"})
	text, err := client.ExtractImageText(context.Background(), "https://i.example.com/ad.png")
	if err != nil {
		t.Fatalf("ExtractImageText failed: %v", err)
	}
	if text != "limited time offer" {
		t.Fatalf("unexpected transcription %q", text)
	}
	if !strings.Contains(string(captured), `"image_url"`) ||
		!strings.Contains(string(captured), "https://i.example.com/ad.png") {
		t.Fatalf("request body missing image reference: %s", captured)
	}

	if _, err := client.ExtractImageText(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank image url")
	}
}
