package recognize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagelens/pagelens/internal/core/apperr"
	"github.com/pagelens/pagelens/internal/models"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, []byte("not-really-a-png"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRemoteClient_AuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type %q", r.URL.Query().Get("grant_type"))
		}
		if r.URL.Query().Get("client_id") != "ak" || r.URL.Query().Get("client_secret") != "sk" {
			t.Error("credentials not forwarded")
		}
		w.Write([]byte(`{"access_token":"tok-123"}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, srv.URL, time.Second, nil)
	token, err := c.Authenticate(context.Background(), models.Credentials{APIKey: "ak", SecretKey: "sk"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q", token)
	}
}

func TestRemoteClient_AuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client id"}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, srv.URL, time.Second, nil)
	_, err := c.Authenticate(context.Background(), models.Credentials{APIKey: "bad", SecretKey: "bad"})
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestRemoteClient_RecognizeParsesFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" {
			t.Error("access token not forwarded")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("image") == "" {
			t.Error("image payload missing")
		}
		if r.PostForm.Get("language_type") != "CHN_ENG" {
			t.Errorf("language_type = %q", r.PostForm.Get("language_type"))
		}
		w.Write([]byte(`{"words_result":[
			{"words":"hello","location":{"left":10,"top":20,"width":100,"height":24},"probability":{"average":0.97}},
			{"words":"world","location":{"left":10,"top":50,"width":90,"height":22}}
		]}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, srv.URL, time.Second, nil)
	frags, err := c.Recognize(context.Background(), writeTestImage(t), "tok", "CHN_ENG")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	if frags[0].Text != "hello" || frags[0].Left != 10 || frags[0].Height != 24 {
		t.Errorf("fragment 0 = %+v", frags[0])
	}
	if frags[0].Confidence == nil || *frags[0].Confidence != 0.97 {
		t.Errorf("fragment 0 confidence = %v", frags[0].Confidence)
	}
	if frags[1].Confidence != nil {
		t.Error("fragment 1 should carry no confidence")
	}
}

func TestRemoteClient_RecognizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code":17,"error_msg":"daily limit reached"}`))
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, srv.URL, time.Second, nil)
	_, err := c.Recognize(context.Background(), writeTestImage(t), "tok", "ENG")
	if !errors.Is(err, apperr.ErrRecognition) {
		t.Errorf("expected ErrRecognition, got %v", err)
	}
}

func TestSanitizeCredential(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  plain  ", "plain"},
		{`"quoted"`, "quoted"},
		{`' spaced '`, "spaced"},
		{`"`, `"`},
	}
	for _, tc := range cases {
		if got := SanitizeCredential(tc.in); got != tc.want {
			t.Errorf("SanitizeCredential(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
