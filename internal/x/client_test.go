package x

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds struct {
	creds Credentials
	err   error
}

func (s *staticCreds) Credentials(handle string) (Credentials, error) {
	return s.creds, s.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, server.URL, &staticCreds{
		creds: Credentials{AccessToken: "tok", AccessSecret: "sec"},
	}, WithHTTPClient(server.Client()))
	return client, server
}

func TestPublish(t *testing.T) {
	var gotBody createTweetRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"data":{"id":"111"}}`))
	})

	id, err := client.Publish(context.Background(), "alice", "hello", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "111", id)
	assert.Equal(t, "hello", gotBody.Text)
	require.NotNil(t, gotBody.Media)
	assert.Equal(t, []string{"m-1"}, gotBody.Media.MediaIDs)
}

func TestPublishWithoutMediaOmitsField(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "media")
		w.Write([]byte(`{"data":{"id":"111"}}`))
	})

	_, err := client.Publish(context.Background(), "alice", "hello", "")
	require.NoError(t, err)
}

func TestPublishRateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := client.Publish(context.Background(), "alice", "hello", "")
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, ErrorKind(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestPublishAuthError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	_, err := client.Publish(context.Background(), "alice", "hello", "")
	assert.Equal(t, KindAuth, ErrorKind(err))
}

func TestPublishCredentialErrorPropagates(t *testing.T) {
	client := NewClient("http://unused", "http://unused", &staticCreds{err: errors.New("no creds")})

	_, err := client.Publish(context.Background(), "alice", "hello", "")
	assert.EqualError(t, err, "no creds")
}

func TestUpload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/media/upload.json", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("media")
		require.NoError(t, err)
		assert.Equal(t, "pic.png", header.Filename)
		w.Write([]byte(`{"media_id_string":"media-9"}`))
	})

	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	id, err := client.Upload(context.Background(), "alice", path)
	require.NoError(t, err)
	assert.Equal(t, "media-9", id)
}

func TestTimeline(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "from:alice -is:retweet", r.URL.Query().Get("query"))
		w.Write([]byte(`{"data":[
			{"id":"1","text":"first","created_at":"2026-08-01T10:00:00Z"},
			{"id":"2","text":"second","created_at":"2026-08-02T10:00:00Z"}
		]}`))
	})

	posts, err := client.Timeline(context.Background(), "alice", 50)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "first", posts[0].Text)
	assert.Equal(t, 2026, posts[0].CreatedAt.Year())
}

func TestSearchMediaPicksMP4Variant(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data":[{"id":"1","text":"clip","attachments":{"media_keys":["k1"]}}],
			"includes":{"media":[{
				"media_key":"k1","type":"video",
				"variants":[
					{"url":"http://cdn/clip.m3u8","content_type":"application/x-mpegURL"},
					{"url":"http://cdn/clip.mp4","content_type":"video/mp4"}
				]
			}]}
		}`))
	})

	results, err := client.SearchMedia(context.Background(), "alice", "clip", "video", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "http://cdn/clip.mp4", results[0].URL)
}

func TestSearchMediaSkipsWrongType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data":[{"id":"1","text":"pic","attachments":{"media_keys":["k1"]}}],
			"includes":{"media":[{"media_key":"k1","type":"photo","url":"http://cdn/a.jpg"}]}
		}`))
	})

	results, err := client.SearchMedia(context.Background(), "alice", "pic", "video", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDownload(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file-bytes"))
	})

	dir := t.TempDir()
	path, err := client.Download(context.Background(), server.URL+"/media/pic.jpg?tag=1", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-bytes", string(data))
	assert.Contains(t, filepath.Base(path), "pic.jpg")
}

func TestErrorKindDefaultsToNetwork(t *testing.T) {
	assert.Equal(t, KindNetwork, ErrorKind(errors.New("plain")))
}
