package server

import (
	"net/http"
	"testing"
)

func createTopic(t *testing.T, h *testHarness, adminToken string, body map[string]any) map[string]any {
	t.Helper()
	resp, payload := h.request(t, http.MethodPost, "/api/admin/topics", adminToken, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create topic: status %d (%v)", resp.StatusCode, payload)
	}
	return payload
}

func TestTopicLifecycle(t *testing.T) {
	h := newTestHarness(t)
	adminToken, _ := seedAdminAndUser(t, h)

	topic := createTopic(t, h, adminToken, map[string]any{
		"title": "Cell Biology", "slug": "cell-biology", "published": true,
	})
	createTopic(t, h, adminToken, map[string]any{
		"title": "Draft Topic", "slug": "draft-topic", "published": false,
	})

	// Public listing hides drafts.
	_, payload := h.request(t, http.MethodGet, "/api/topics", "", nil)
	topics, _ := payload["topics"].([]any)
	if len(topics) != 1 {
		t.Fatalf("public topics = %v, want only the published one", payload)
	}

	// Admin listing includes drafts.
	_, payload = h.request(t, http.MethodGet, "/api/admin/topics", adminToken, nil)
	if topics, _ := payload["topics"].([]any); len(topics) != 2 {
		t.Fatalf("admin topics = %v, want 2", payload)
	}

	topicID, _ := topic["id"].(string)
	resp, section := h.request(t, http.MethodPost, "/api/admin/topics/"+topicID+"/sections", adminToken, map[string]any{
		"title": "The cell membrane", "body": "Lipid bilayer basics.", "position": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create section: status %d (%v)", resp.StatusCode, section)
	}

	resp, payload = h.request(t, http.MethodGet, "/api/topics/cell-biology", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("topic by slug: status %d", resp.StatusCode)
	}
	sections, _ := payload["sections"].([]any)
	if len(sections) != 1 {
		t.Fatalf("sections = %v, want 1", payload)
	}

	// Draft topics are invisible on the public route.
	resp, _ = h.request(t, http.MethodGet, "/api/topics/draft-topic", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("draft by slug: status %d, want 404", resp.StatusCode)
	}

	resp, _ = h.request(t, http.MethodDelete, "/api/admin/topics/"+topicID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete topic: status %d", resp.StatusCode)
	}
	resp, _ = h.request(t, http.MethodGet, "/api/topics/cell-biology", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted topic still served: status %d", resp.StatusCode)
	}
}

func TestTopicSlugValidation(t *testing.T) {
	h := newTestHarness(t)
	adminToken, _ := seedAdminAndUser(t, h)

	resp, _ := h.request(t, http.MethodPost, "/api/admin/topics", adminToken, map[string]any{
		"title": "Bad Slug", "slug": "Not A Slug",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad slug: status %d, want 400", resp.StatusCode)
	}

	createTopic(t, h, adminToken, map[string]any{"title": "One", "slug": "taken"})
	resp, _ = h.request(t, http.MethodPost, "/api/admin/topics", adminToken, map[string]any{
		"title": "Two", "slug": "taken",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate slug: status %d, want 400", resp.StatusCode)
	}
}

func TestReviewFlow(t *testing.T) {
	h := newTestHarness(t)
	adminToken, userToken := seedAdminAndUser(t, h)
	createTopic(t, h, adminToken, map[string]any{
		"title": "Chemistry", "slug": "chemistry", "published": true,
	})

	resp, payload := h.request(t, http.MethodPost, "/api/topics/chemistry/reviews", userToken, map[string]any{
		"rating": 4, "comment": "Clear and useful.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit review: status %d (%v)", resp.StatusCode, payload)
	}

	// A second review from the same user replaces the first.
	resp, _ = h.request(t, http.MethodPost, "/api/topics/chemistry/reviews", userToken, map[string]any{
		"rating": 5, "comment": "Even better on reread.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("resubmit review: status %d", resp.StatusCode)
	}

	_, payload = h.request(t, http.MethodGet, "/api/topics/chemistry/reviews", "", nil)
	reviews, _ := payload["reviews"].([]any)
	if len(reviews) != 1 {
		t.Fatalf("reviews = %v, want the replacement only", payload)
	}
	review, _ := reviews[0].(map[string]any)
	if review["rating"].(float64) != 5 {
		t.Fatalf("review rating = %v, want 5", review["rating"])
	}
}

func TestGuestsCannotReview(t *testing.T) {
	h := newTestHarness(t)
	adminToken, _ := seedAdminAndUser(t, h)
	createTopic(t, h, adminToken, map[string]any{
		"title": "Physics", "slug": "physics", "published": true,
	})
	guestToken := h.startGuest(t)

	resp, _ := h.request(t, http.MethodPost, "/api/topics/physics/reviews", guestToken, map[string]any{
		"rating": 3,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest review: status %d, want 403", resp.StatusCode)
	}
}

func TestReviewRatingBounds(t *testing.T) {
	h := newTestHarness(t)
	adminToken, userToken := seedAdminAndUser(t, h)
	createTopic(t, h, adminToken, map[string]any{
		"title": "Stats", "slug": "stats", "published": true,
	})

	for _, rating := range []int{0, 6} {
		resp, _ := h.request(t, http.MethodPost, "/api/topics/stats/reviews", userToken, map[string]any{
			"rating": rating,
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("rating %d: status %d, want 400", rating, resp.StatusCode)
		}
	}
}

func TestAdminUserManagement(t *testing.T) {
	h := newTestHarness(t)
	adminToken, userToken := seedAdminAndUser(t, h)

	_, payload := h.request(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	users, _ := payload["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("users = %v, want 2", payload)
	}

	// Find the non-admin and upgrade their tier.
	var targetID string
	for _, raw := range users {
		u, _ := raw.(map[string]any)
		if u["role"] == "user" {
			targetID, _ = u["id"].(string)
		}
	}
	resp, updated := h.request(t, http.MethodPatch, "/api/admin/users/"+targetID, adminToken, map[string]any{
		"subscriptionTier": "premium",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update user: status %d (%v)", resp.StatusCode, updated)
	}
	if updated["subscriptionTier"] != "premium" {
		t.Fatalf("tier = %v, want premium", updated["subscriptionTier"])
	}

	// Tier change starts a fresh period.
	_, usage := h.request(t, http.MethodGet, "/api/usage", userToken, nil)
	if usage["used"].(float64) != 0 || usage["limit"].(float64) != 200 {
		t.Fatalf("usage after upgrade = %v, want 0/200", usage)
	}

	// Admins cannot disable themselves.
	var adminID string
	for _, raw := range users {
		u, _ := raw.(map[string]any)
		if u["role"] == "admin" {
			adminID, _ = u["id"].(string)
		}
	}
	resp, _ = h.request(t, http.MethodPatch, "/api/admin/users/"+adminID, adminToken, map[string]any{
		"status": "disabled",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self-disable: status %d, want 403", resp.StatusCode)
	}

	// Disabled accounts stop authenticating.
	resp, _ = h.request(t, http.MethodPatch, "/api/admin/users/"+targetID, adminToken, map[string]any{
		"status": "disabled",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable user: status %d", resp.StatusCode)
	}
	resp, _ = h.request(t, http.MethodGet, "/api/users/me", userToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("disabled user me: status %d, want 401", resp.StatusCode)
	}
}
