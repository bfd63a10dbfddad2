package server

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestGuestChatExhaustsAllowance(t *testing.T) {
	h := newTestHarness(t)
	token := h.startGuest(t)

	// The guest allowance covers three chats.
	for i := 0; i < 3; i++ {
		resp, payload := h.request(t, http.MethodPost, "/api/chat", token, map[string]string{
			"question": "Explain photosynthesis",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chat %d: status %d (%v)", i+1, resp.StatusCode, payload)
		}
		if payload["answer"] != "Here is an explanation." {
			t.Fatalf("chat %d: answer = %v", i+1, payload["answer"])
		}
	}

	resp, payload := h.request(t, http.MethodPost, "/api/chat", token, map[string]string{
		"question": "One more",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("fourth chat: status %d, want 429", resp.StatusCode)
	}
	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "upgrade") {
		t.Fatalf("rejection message = %q, want upgrade hint", msg)
	}
}

func TestUsageReflectsConsumption(t *testing.T) {
	h := newTestHarness(t)
	token := h.startGuest(t)

	resp, payload := h.request(t, http.MethodGet, "/api/usage", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("usage: status %d", resp.StatusCode)
	}
	if payload["used"].(float64) != 0 || payload["limit"].(float64) != 3 {
		t.Fatalf("fresh usage = %v, want 0/3", payload)
	}

	if resp, p := h.request(t, http.MethodPost, "/api/chat", token, map[string]string{"question": "hi there"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status %d (%v)", resp.StatusCode, p)
	}

	_, payload = h.request(t, http.MethodGet, "/api/usage", token, nil)
	if payload["used"].(float64) != 1 {
		t.Fatalf("usage after chat = %v, want used 1", payload)
	}
}

func TestChatResponseCarriesUsageAndConversation(t *testing.T) {
	h := newTestHarness(t)
	_, token := seedAdminAndUser(t, h)

	resp, payload := h.request(t, http.MethodPost, "/api/chat", token, map[string]string{
		"question": "What is osmosis?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status %d (%v)", resp.StatusCode, payload)
	}
	if payload["conversationId"] == "" {
		t.Fatal("no conversation id in response")
	}
	usage, _ := payload["usage"].(map[string]any)
	if usage["used"].(float64) != 1 || usage["limit"].(float64) != 10 {
		t.Fatalf("usage = %v, want 1/10", usage)
	}

	resp, payload = h.request(t, http.MethodGet, "/api/conversations", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conversations: status %d", resp.StatusCode)
	}
	convs, _ := payload["conversations"].([]any)
	if len(convs) != 1 {
		t.Fatalf("conversations = %v, want 1 entry", payload)
	}
}

func TestChatGeneratorOutageReturns503(t *testing.T) {
	h := newTestHarness(t)
	token := h.startGuest(t)
	h.gen.err = errors.New("upstream timeout")

	resp, _ := h.request(t, http.MethodPost, "/api/chat", token, map[string]string{"question": "hello"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("generator outage: status %d, want 503", resp.StatusCode)
	}

	// The failed call consumed nothing.
	h.gen.err = nil
	_, payload := h.request(t, http.MethodGet, "/api/usage", token, nil)
	if payload["used"].(float64) != 0 {
		t.Fatalf("usage after outage = %v, want 0", payload)
	}
}

func TestChatRejectsBlankQuestion(t *testing.T) {
	h := newTestHarness(t)
	token := h.startGuest(t)
	resp, _ := h.request(t, http.MethodPost, "/api/chat", token, map[string]string{"question": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank question: status %d, want 400", resp.StatusCode)
	}
}
