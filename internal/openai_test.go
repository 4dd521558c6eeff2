package internal

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestEnsureClientIsSafeForConcurrentWorkers(t *testing.T) {
	config := testConfig(t)
	config.LLMProvider = "ollama"
	ai := NewAIFromConfig(config)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ai.ensureClient()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("ensureClient: %v", err)
		}
	}
	if ai.client == nil {
		t.Error("client not built")
	}
}

func TestEnsureClientRequiresAPIKeyForRemoteProvider(t *testing.T) {
	config := testConfig(t)
	config.OpenAIAPIKey = ""
	ai := NewAIFromConfig(config)

	_, err := ai.Complete(context.Background(), "model", "prompt")
	if err == nil {
		t.Fatal("Complete succeeded without an API key")
	}
	if !strings.Contains(err.Error(), "API key") {
		t.Errorf("error %v does not mention the missing API key", err)
	}

	// The resolution failure is sticky, not retried per call.
	if _, err := ai.Embed(context.Background(), "model", "input"); err == nil {
		t.Error("Embed succeeded without an API key")
	}
}

func TestEnsureClientKeepsInjectedClient(t *testing.T) {
	fake := &fakeLLM{steps: []llmStep{{text: "ok"}}}
	ai := newFakeAI(fake)

	got, err := ai.Complete(context.Background(), "model", "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" {
		t.Errorf("response = %q, want ok", got)
	}
}
