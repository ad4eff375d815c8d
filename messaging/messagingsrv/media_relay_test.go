package messagingsrv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

type stubObjectStore struct {
	paths        []string
	contentTypes []string
	failPut      bool
}

func (s *stubObjectStore) PutObject(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if s.failPut {
		return "", errors.New("storage unavailable")
	}
	s.paths = append(s.paths, path)
	s.contentTypes = append(s.contentTypes, contentType)
	return "https://cdn.example.com/" + path, nil
}

type stubMediaSource struct {
	data        []byte
	contentType string
	err         error
}

func (s *stubMediaSource) FetchMedia(ctx context.Context, tenantID kernel.TenantID, mediaID string) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.data, s.contentType, nil
}

func TestRelayFromWhatsApp(t *testing.T) {
	store := &stubObjectStore{}
	source := &stubMediaSource{data: []byte("jpegbytes"), contentType: "image/jpeg"}
	relay := NewMediaRelayService(store, source, 5*time.Second)

	media, err := relay.RelayFromWhatsApp(context.Background(), kernel.NewTenantID("t1"), "media-123", "foto.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.paths) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(store.paths))
	}
	if !strings.HasPrefix(store.paths[0], "t1/") || !strings.HasSuffix(store.paths[0], ".jpg") {
		t.Errorf("object path not tenant-scoped with extension: %s", store.paths[0])
	}
	if media.URL != "https://cdn.example.com/"+store.paths[0] {
		t.Errorf("unexpected media url: %s", media.URL)
	}
	if media.ContentType != "image/jpeg" || media.Filename != "foto.jpg" {
		t.Errorf("media descriptor malformed: %+v", media)
	}
}

func TestRelayFromWhatsAppSourceFailure(t *testing.T) {
	store := &stubObjectStore{}
	source := &stubMediaSource{err: errors.New("media expired")}
	relay := NewMediaRelayService(store, source, 5*time.Second)

	if _, err := relay.RelayFromWhatsApp(context.Background(), kernel.NewTenantID("t1"), "media-123", ""); err == nil {
		t.Error("expected error when source fetch fails")
	}
	if len(store.paths) != 0 {
		t.Errorf("nothing should be uploaded on fetch failure")
	}
}

func TestRelayFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	store := &stubObjectStore{}
	relay := NewMediaRelayService(store, &stubMediaSource{}, 5*time.Second)

	// Content type vacío: debe tomarse del header de la respuesta
	media, err := relay.RelayFromURL(context.Background(), kernel.NewTenantID("t2"), server.URL, "", "contrato.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media.ContentType != "application/pdf" {
		t.Errorf("content type not taken from response header: %s", media.ContentType)
	}
	if !strings.HasSuffix(store.paths[0], ".pdf") {
		t.Errorf("extension not derived from content type: %s", store.paths[0])
	}
}

func TestRelayFromURLNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	relay := NewMediaRelayService(&stubObjectStore{}, &stubMediaSource{}, 5*time.Second)

	if _, err := relay.RelayFromURL(context.Background(), kernel.NewTenantID("t2"), server.URL, "image/png", ""); err == nil {
		t.Error("expected error on non-200 download")
	}
}

func TestRelayEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	relay := NewMediaRelayService(&stubObjectStore{}, &stubMediaSource{}, 5*time.Second)

	if _, err := relay.RelayFromURL(context.Background(), kernel.NewTenantID("t2"), server.URL, "image/png", ""); err == nil {
		t.Error("expected error on empty media body")
	}
}

func TestRelayStorageFailure(t *testing.T) {
	store := &stubObjectStore{failPut: true}
	source := &stubMediaSource{data: []byte("bytes"), contentType: "image/png"}
	relay := NewMediaRelayService(store, source, 5*time.Second)

	if _, err := relay.RelayFromWhatsApp(context.Background(), kernel.NewTenantID("t1"), "media-9", ""); err == nil {
		t.Error("expected error when upload fails")
	}
}
