package openfda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

const sampleResult = `{
	"results": [
		{
			"brand_name": "Acme Aspirin",
			"generic_name": "aspirin",
			"manufacturer_name": "Acme Corp",
			"product_ndc": "12345-678",
			"dosage_form": "TABLET",
			"route": ["ORAL"],
			"active_ingredients": [{"name": "ASPIRIN", "strength": "325 mg/1"}],
			"marketing_status": "OTC"
		},
		{
			"brand_name": "",
			"generic_name": "aspirin",
			"product_ndc": "99999-999"
		}
	]
}`

func TestLookupByNDCFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search")
		if !strings.Contains(query, `product_ndc:"12345-678"`) {
			t.Errorf("unexpected search query %q", query)
		}
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResult))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	outcome, err := client.LookupByNDC(context.Background(), "12345-678")
	if err != nil {
		t.Fatalf("LookupByNDC() error = %v", err)
	}
	if outcome.Kind != domain.LookupFound {
		t.Fatalf("kind = %s, want found", outcome.Kind)
	}
	if outcome.Match == nil || outcome.Match.Name != "Acme Aspirin" {
		t.Fatalf("match = %+v, want first record", outcome.Match)
	}
	if outcome.Match.Manufacturer != "Acme Corp" {
		t.Fatalf("manufacturer = %q", outcome.Match.Manufacturer)
	}
	if len(outcome.Match.ActiveIngredients) != 1 || outcome.Match.ActiveIngredients[0].Strength != "325 mg/1" {
		t.Fatalf("ingredients = %+v", outcome.Match.ActiveIngredients)
	}
}

func TestLookupByNDCNotFoundStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"No matches found!"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	outcome, err := client.LookupByNDC(context.Background(), "00000-000")
	if err != nil {
		t.Fatalf("LookupByNDC() error = %v, 404 is a definitive empty result", err)
	}
	if outcome.Kind != domain.LookupNotFound {
		t.Fatalf("kind = %s, want not_found", outcome.Kind)
	}
}

func TestLookupByNDCServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	_, err := client.LookupByNDC(context.Background(), "12345-678")
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
}

func TestLookupByNDCMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	if _, err := client.LookupByNDC(context.Background(), "12345-678"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLookupByNameMultiple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search")
		if !strings.Contains(query, `brand_name:"aspirin"`) || !strings.Contains(query, `generic_name:"aspirin"`) {
			t.Errorf("unexpected search query %q", query)
		}
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResult))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	outcome, err := client.LookupByName(context.Background(), "aspirin")
	if err != nil {
		t.Fatalf("LookupByName() error = %v", err)
	}
	if outcome.Kind != domain.LookupFoundMultiple {
		t.Fatalf("kind = %s, want found_multiple", outcome.Kind)
	}
	if len(outcome.Matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(outcome.Matches))
	}
	// A record without a brand name falls back to the generic name.
	if outcome.Matches[1].Name != "aspirin" {
		t.Fatalf("second match name = %q, want generic fallback", outcome.Matches[1].Name)
	}
}

func TestLookupByNameEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	outcome, err := client.LookupByName(context.Background(), "nonexistol")
	if err != nil {
		t.Fatalf("LookupByName() error = %v", err)
	}
	if outcome.Kind != domain.LookupNotFound {
		t.Fatalf("kind = %s, want not_found", outcome.Kind)
	}
}

func TestSearchSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "secret" {
			t.Errorf("api_key not forwarded")
		}
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := New(server.URL, "secret", Options{})
	if _, err := client.LookupByNDC(context.Background(), "12345-678"); err != nil {
		t.Fatalf("LookupByNDC() error = %v", err)
	}
}
