package mdl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"vikisync/internal/services"
	"vikisync/internal/services/mdl"
)

const searchPage = `<html><body>
<div class="box">
  <h6><a href="/12345-first-love-again">First Love Again</a></h6>
</div>
<div class="box">
  <h6><a href="/67890-other-show">Other Show</a></h6>
</div>
</body></html>`

const detailPage = `<html><head>
<script type="application/ld+json">
{"@type":"TVSeries","name":"First Love Again","alternateName":["다시 첫사랑","First Love, Again","Cheot Sarang Dasi","恋の再会"]}
</script>
</head><body>
<a href="https://www.viki.com/tv/36782c-first-love-again">Watch on Viki</a>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			if got := r.URL.Query().Get("q"); got != "다시 첫사랑" {
				t.Errorf("unexpected search query %q", got)
			}
			w.Write([]byte(searchPage))
		case "/12345-first-love-again":
			w.Write([]byte(detailPage))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSearchAliases(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	client, err := mdl.New(server.URL, mdl.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := client.SearchAliases(context.Background(), "다시 첫사랑")
	if err != nil {
		t.Fatalf("SearchAliases failed: %v", err)
	}
	if result.Title != "First Love Again" {
		t.Fatalf("unexpected title %q", result.Title)
	}
	want := []string{"First Love, Again", "Cheot Sarang Dasi"}
	if len(result.EnglishAliases) != len(want) {
		t.Fatalf("expected CJK aliases filtered, got %v", result.EnglishAliases)
	}
	for i, alias := range want {
		if result.EnglishAliases[i] != alias {
			t.Fatalf("alias %d: want %q, got %q", i, alias, result.EnglishAliases[i])
		}
	}
	if result.VikiID != "36782c" {
		t.Fatalf("viki id not extracted, got %q", result.VikiID)
	}
}

func TestSearchAliasesNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>No results found</p></body></html>`))
	}))
	defer server.Close()

	client, err := mdl.New(server.URL, mdl.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = client.SearchAliases(context.Background(), "nothing matches this")
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
