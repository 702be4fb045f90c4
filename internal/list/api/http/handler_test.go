package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fedilist/fedilist/internal/list/event"
	"github.com/fedilist/fedilist/internal/list/service"
	"github.com/fedilist/fedilist/internal/list/storage/sqlite"
)

type nopPublisher struct {
	events []event.Event
}

func (n *nopPublisher) Publish(ctx context.Context, evt event.Event) error {
	n.events = append(n.events, evt)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *nopPublisher) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "lists.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	publisher := &nopPublisher{}
	counter := 0
	svc, err := service.New(service.Config{
		Lists:     store,
		Items:     store,
		Publisher: publisher,
		BaseIRI:   "https://lists.example",
		Now: func() time.Time {
			return time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
		},
		IDGenerator: func() (string, error) {
			counter++
			return fmt.Sprintf("id-%02d", counter), nil
		},
		Logf: func(string, ...any) {},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	handler, err := NewHandler(svc, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux := http.NewServeMux()
	handler.Routes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, publisher
}

func doJSON(t *testing.T, server *httptest.Server, method, path, actor string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	decoded := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp, decoded
}

func createListVia(t *testing.T, server *httptest.Server, curation string) string {
	t.Helper()
	resp, body := doJSON(t, server, http.MethodPost, "/v1/lists", "owner-1", map[string]any{
		"name":     "Reading",
		"privacy":  "public",
		"curation": curation,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list status = %d: %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create list response missing id: %v", body)
	}
	return id
}

func TestCreateListEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodPost, "/v1/lists", "owner-1", map[string]any{
		"name":        "Reading",
		"description": "Things worth reading.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if body["owner_id"] != "owner-1" {
		t.Fatalf("owner_id = %v", body["owner_id"])
	}
	// Defaults applied.
	if body["privacy"] != "public" || body["curation"] != "closed" {
		t.Fatalf("defaults not applied: %v", body)
	}
	if body["remote_id"] == "" {
		t.Fatal("expected remote_id")
	}
}

func TestCreateListRequiresActor(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodPost, "/v1/lists", "", map[string]any{"name": "X"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "UNAUTHORIZED" {
		t.Fatalf("error = %v", body)
	}
}

func TestCreateListValidation(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodPost, "/v1/lists", "owner-1", map[string]any{
		"name":    "X",
		"privacy": "martian",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "LIST_INVALID_PRIVACY" {
		t.Fatalf("error = %v", body)
	}
}

func TestUpdateListEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	listID := createListVia(t, server, "closed")

	resp, body := doJSON(t, server, http.MethodPatch, "/v1/lists/"+listID, "owner-1", map[string]any{
		"name":     "Renamed",
		"privacy":  "followers",
		"curation": "curated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if body["name"] != "Renamed" || body["privacy"] != "followers" {
		t.Fatalf("unexpected body: %v", body)
	}

	resp, body = doJSON(t, server, http.MethodPatch, "/v1/lists/"+listID, "intruder", map[string]any{
		"name":     "Hijacked",
		"privacy":  "public",
		"curation": "open",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("intruder status = %d: %v", resp.StatusCode, body)
	}
}

func TestAddAndGetItems(t *testing.T) {
	server, _ := newTestServer(t)
	listID := createListVia(t, server, "closed")

	resp, item := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items", "owner-1", map[string]any{
		"resource_iri": "https://books.example/book/1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add item status = %d: %v", resp.StatusCode, item)
	}
	if item["position"] != float64(1) || item["approved"] != true {
		t.Fatalf("unexpected item: %v", item)
	}

	resp, body := doJSON(t, server, http.MethodGet, "/v1/lists/"+listID, "reader", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get list status = %d: %v", resp.StatusCode, body)
	}
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", body["items"])
	}
}

func TestPendingContributionFlow(t *testing.T) {
	server, publisher := newTestServer(t)
	listID := createListVia(t, server, "curated")

	resp, item := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items", "contributor-1", map[string]any{
		"resource_iri": "https://books.example/book/1",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("pending add status = %d: %v", resp.StatusCode, item)
	}
	if item["approved"] != false {
		t.Fatalf("expected pending item: %v", item)
	}
	itemID, _ := item["id"].(string)

	// Hidden from a non-owner read.
	_, publicView := doJSON(t, server, http.MethodGet, "/v1/lists/"+listID, "reader", nil)
	if items, _ := publicView["items"].([]any); len(items) != 0 {
		t.Fatalf("pending item visible to reader: %v", publicView["items"])
	}

	// Visible on the owner's pending queue.
	resp, pending := doJSON(t, server, http.MethodGet, "/v1/lists/"+listID+"/pending", "owner-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending status = %d: %v", resp.StatusCode, pending)
	}
	if items, _ := pending["items"].([]any); len(items) != 1 {
		t.Fatalf("pending items = %v", pending["items"])
	}

	eventsBefore := len(publisher.events)
	resp, approved := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items/"+itemID+"/moderation", "owner-1", map[string]any{
		"approve": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d: %v", resp.StatusCode, approved)
	}
	if approved["approved"] != true {
		t.Fatalf("unexpected item after approval: %v", approved)
	}
	if len(publisher.events) != eventsBefore+1 {
		t.Fatalf("approval emitted %d events, want 1", len(publisher.events)-eventsBefore)
	}
	if publisher.events[len(publisher.events)-1].Type != event.TypeItemAdded {
		t.Fatalf("event = %s", publisher.events[len(publisher.events)-1].Type)
	}
}

func TestModerationRejectEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	listID := createListVia(t, server, "curated")

	_, item := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items", "contributor-1", map[string]any{
		"resource_iri": "https://books.example/book/1",
	})
	itemID, _ := item["id"].(string)

	resp, _ := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items/"+itemID+"/moderation", "owner-1", map[string]any{
		"approve": false,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reject status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, server, http.MethodGet, "/v1/lists/"+listID+"/pending", "owner-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending status = %d", resp.StatusCode)
	}
	if items, _ := body["items"].([]any); len(items) != 0 {
		t.Fatalf("pending items = %v", body["items"])
	}
}

func TestRemoveAndRepositionEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	listID := createListVia(t, server, "closed")

	var itemIDs []string
	for i := 1; i <= 3; i++ {
		_, item := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items", "owner-1", map[string]any{
			"resource_iri": fmt.Sprintf("https://books.example/book/%d", i),
		})
		id, _ := item["id"].(string)
		itemIDs = append(itemIDs, id)
	}

	resp, _ := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items/"+itemIDs[2]+"/position", "owner-1", map[string]any{
		"position": 1,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reposition status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, server, http.MethodDelete, "/v1/lists/"+listID+"/items/"+itemIDs[0], "owner-1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove status = %d", resp.StatusCode)
	}

	_, body := doJSON(t, server, http.MethodGet, "/v1/lists/"+listID, "owner-1", nil)
	items, _ := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %v", body["items"])
	}
	first, _ := items[0].(map[string]any)
	if first["id"] != itemIDs[2] || first["position"] != float64(1) {
		t.Fatalf("unexpected first item: %v", first)
	}
	second, _ := items[1].(map[string]any)
	if second["id"] != itemIDs[1] || second["position"] != float64(2) {
		t.Fatalf("unexpected second item: %v", second)
	}
}

func TestRepositionOutOfRange(t *testing.T) {
	server, _ := newTestServer(t)
	listID := createListVia(t, server, "closed")
	_, item := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items", "owner-1", map[string]any{
		"resource_iri": "https://books.example/book/1",
	})
	itemID, _ := item["id"].(string)

	resp, body := doJSON(t, server, http.MethodPost, "/v1/lists/"+listID+"/items/"+itemID+"/position", "owner-1", map[string]any{
		"position": 5,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "INVALID_POSITION" {
		t.Fatalf("error = %v", body)
	}
}

func TestListListsEndpointPagination(t *testing.T) {
	server, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		createListVia(t, server, "closed")
	}

	resp, body := doJSON(t, server, http.MethodGet, "/v1/lists?page_size=2", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	lists, _ := body["lists"].([]any)
	if len(lists) != 2 {
		t.Fatalf("lists = %v", body["lists"])
	}
	token, _ := body["next_page_token"].(string)
	if token == "" {
		t.Fatal("expected next_page_token")
	}

	resp, body = doJSON(t, server, http.MethodGet, "/v1/lists?page_size=2&page_token="+token, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second page status = %d", resp.StatusCode)
	}
	lists, _ = body["lists"].([]any)
	if len(lists) != 1 {
		t.Fatalf("second page lists = %v", body["lists"])
	}
}

func TestGetListNotFoundEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodGet, "/v1/lists/missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
}

func TestInvalidBodyRejected(t *testing.T) {
	server, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/lists", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Actor-ID", "owner-1")
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
