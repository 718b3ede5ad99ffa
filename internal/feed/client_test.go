package feed

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
)

type stubHTTP struct {
	lastURL string
	status  int
	body    string
}

func (s *stubHTTP) Do(req *http.Request) (*http.Response, error) {
	s.lastURL = req.URL.String()
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     http.Header{},
	}, nil
}

func TestBooruClientFetch(t *testing.T) {
	stub := &stubHTTP{status: http.StatusOK, body: `[
		{"id": 11, "md5": "aaa", "tag_string": "landscape sky", "file_url": "https://img/11.png", "source": "https://src/11"},
		{"id": 12, "md5": "", "tag_string": "animals", "file_url": "https://img/12.png"},
		{"id": 13, "md5": "ccc", "tag_string": "hidden", "file_url": ""}
	]`}
	c := NewBooruClient("https://api.example/", stub)

	items, err := c.Fetch(context.Background(), "landscape", 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []model.ContentItem{
		{ID: "11", DedupKey: "aaa", Tags: []string{"landscape", "sky"}, MediaURL: "https://img/11.png", SourceURL: "https://src/11"},
		{ID: "12", DedupKey: "12", Tags: []string{"animals"}, MediaURL: "https://img/12.png"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
	if got, wantURL := stub.lastURL, "https://api.example/posts.json?limit=50&tags=landscape"; got != wantURL {
		t.Errorf("url = %q, want %q", got, wantURL)
	}
}

func TestBooruClientBadStatus(t *testing.T) {
	stub := &stubHTTP{status: http.StatusTooManyRequests, body: ""}
	c := NewBooruClient("https://api.example", stub)
	if _, err := c.Fetch(context.Background(), "q", 10); err == nil {
		t.Fatal("want error on non-200 status")
	}
}

func TestBooruClientBadJSON(t *testing.T) {
	stub := &stubHTTP{status: http.StatusOK, body: `{"not": "an array"`}
	c := NewBooruClient("https://api.example", stub)
	if _, err := c.Fetch(context.Background(), "q", 10); err == nil {
		t.Fatal("want error on malformed body")
	}
}
