package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/clauses":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/clauses/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "clauses")
	vector := []float32{0.1, 0.2}

	if err := client.Upsert(context.Background(), "c-1", "cl-1", vector, nil); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := client.Upsert(context.Background(), "c-1", "cl-2", vector, nil); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestUpsertUsesDeterministicPointID(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/clauses":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/clauses/points":
			var body struct {
				Points []struct {
					ID      string         `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode points: %v", err)
			}
			for _, p := range body.Points {
				ids = append(ids, p.ID)
				if p.Payload["contract_id"] != "c-1" || p.Payload["clause_id"] != "cl-1" {
					t.Errorf("unexpected payload %v", p.Payload)
				}
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "clauses")
	vector := []float32{0.5, 0.5}
	for i := 0; i < 2; i++ {
		if err := client.Upsert(context.Background(), "c-1", "cl-1", vector, map[string]string{"clause_type": "pricing"}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if len(ids) != 2 || ids[0] != ids[1] {
		t.Fatalf("expected stable point id across upserts, got %v", ids)
	}
}

func TestSearchFiltersByContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/clauses/points/search" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Limit  int `json:"limit"`
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode search body: %v", err)
		}
		if body.Limit != 3 {
			t.Errorf("expected limit 3, got %d", body.Limit)
		}
		if len(body.Filter.Must) != 1 || body.Filter.Must[0].Key != "contract_id" || body.Filter.Must[0].Match.Value != "c-9" {
			t.Errorf("expected contract_id filter, got %+v", body.Filter)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"contract_id":"c-9","clause_id":"cl-a"}},
			{"score":0.42,"payload":{"contract_id":"c-9","clause_id":"cl-b"}},
			{"score":0.10,"payload":{"contract_id":"c-9"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "clauses")
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, "c-9", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected payloads without clause_id dropped, got %d hits", len(hits))
	}
	if hits[0].ClauseID != "cl-a" || hits[0].Score != 0.91 {
		t.Fatalf("unexpected first hit %+v", hits[0])
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/clauses" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "clauses")
	err := client.Upsert(context.Background(), "c-1", "cl-1", []float32{0.1, 0.2}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
