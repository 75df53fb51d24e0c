// Package x is the X (Twitter) API collaborator. The posting pipeline only
// depends on the narrow capability interfaces it implements (publish,
// upload, search, timeline); everything platform-specific stays here.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Credentials identify one account for write operations.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	AccessSecret string `json:"access_token_secret"`
}

func (c Credentials) Empty() bool {
	return c.AccessToken == ""
}

// CredentialSource resolves per-handle credentials. Implemented by the
// account registry.
type CredentialSource interface {
	Credentials(handle string) (Credentials, error)
}

type Client struct {
	baseURL   string
	uploadURL string
	creds     CredentialSource
	client    *http.Client

	mu      sync.Mutex
	userIDs map[string]string
}

type Option func(*Client)

func NewClient(baseURL, uploadURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		uploadURL: strings.TrimRight(uploadURL, "/"),
		creds:     creds,
		client:    &http.Client{Timeout: 30 * time.Second},
		userIDs:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// Post is one fetched tweet.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaResult is one search hit carrying a downloadable media URL. Text is
// the tweet the media came from, used to rank hits against the post.
type MediaResult struct {
	TweetID string
	Text    string
	Name    string
	URL     string
}

type createTweetRequest struct {
	Text  string            `json:"text"`
	Media *createTweetMedia `json:"media,omitempty"`
	Reply *createTweetReply `json:"reply,omitempty"`
}

type createTweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createTweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Publish posts a tweet as the given handle, optionally attaching one
// previously uploaded media id. Returns the platform post id.
func (c *Client) Publish(ctx context.Context, handle, text, mediaID string) (string, error) {
	body := createTweetRequest{Text: text}
	if mediaID != "" {
		body.Media = &createTweetMedia{MediaIDs: []string{mediaID}}
	}
	return c.createTweet(ctx, handle, body)
}

// Reply posts text as a reply to an existing tweet.
func (c *Client) Reply(ctx context.Context, handle, text, inReplyToID string) (string, error) {
	body := createTweetRequest{
		Text:  text,
		Reply: &createTweetReply{InReplyToTweetID: inReplyToID},
	}
	return c.createTweet(ctx, handle, body)
}

func (c *Client) createTweet(ctx context.Context, handle string, body createTweetRequest) (string, error) {
	creds, err := c.creds.Credentials(handle)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var decoded createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindPlatform, Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Data.ID == "" {
		return "", &Error{Kind: KindPlatform, Err: fmt.Errorf("empty tweet id in response")}
	}
	return decoded.Data.ID, nil
}

type uploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// Upload sends a media file and returns the platform media id the publish
// call can reference.
func (c *Client) Upload(ctx context.Context, handle, path string) (string, error) {
	creds, err := c.creds.Credentials(handle)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read media file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindPlatform, Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.MediaIDString == "" {
		return "", &Error{Kind: KindPlatform, Err: fmt.Errorf("empty media id in response")}
	}
	return decoded.MediaIDString, nil
}

type searchResponse struct {
	Data []struct {
		ID          string    `json:"id"`
		Text        string    `json:"text"`
		CreatedAt   time.Time `json:"created_at"`
		Attachments struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Includes struct {
		Media []struct {
			MediaKey string `json:"media_key"`
			Type     string `json:"type"`
			URL      string `json:"url"`
			Variants []struct {
				URL         string `json:"url"`
				ContentType string `json:"content_type"`
			} `json:"variants"`
		} `json:"media"`
	} `json:"includes"`
}

// Timeline fetches up to maxCount recent posts authored by handle.
func (c *Client) Timeline(ctx context.Context, handle string, maxCount int) ([]Post, error) {
	if maxCount <= 0 || maxCount > 100 {
		maxCount = 100
	}
	q := url.Values{}
	q.Set("query", fmt.Sprintf("from:%s -is:retweet", handle))
	q.Set("max_results", fmt.Sprint(maxCount))
	q.Set("tweet.fields", "created_at")

	var decoded searchResponse
	if err := c.getSearch(ctx, handle, q, &decoded); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		posts = append(posts, Post{ID: d.ID, Text: d.Text, CreatedAt: d.CreatedAt})
	}
	return posts, nil
}

// SearchMedia finds recent tweets matching query that carry media of the
// requested type ("photo" or "video") and returns their media URLs.
func (c *Client) SearchMedia(ctx context.Context, handle, query, mediaType string, maxCount int) ([]MediaResult, error) {
	if maxCount <= 0 || maxCount > 20 {
		maxCount = 10
	}
	filter := "has:images"
	if mediaType == "video" {
		filter = "has:videos"
	}
	q := url.Values{}
	q.Set("query", fmt.Sprintf("%s %s -is:retweet", query, filter))
	q.Set("max_results", fmt.Sprint(maxCount))
	q.Set("expansions", "attachments.media_keys")
	q.Set("media.fields", "type,url,variants")

	var decoded searchResponse
	if err := c.getSearch(ctx, handle, q, &decoded); err != nil {
		return nil, err
	}

	byKey := make(map[string]string, len(decoded.Includes.Media))
	for _, m := range decoded.Includes.Media {
		if m.Type != mediaType {
			continue
		}
		u := m.URL
		// Videos expose variants rather than a direct URL; take the first
		// mp4 variant.
		if u == "" {
			for _, v := range m.Variants {
				if v.ContentType == "video/mp4" {
					u = v.URL
					break
				}
			}
		}
		if u != "" {
			byKey[m.MediaKey] = u
		}
	}

	var results []MediaResult
	for _, d := range decoded.Data {
		for _, key := range d.Attachments.MediaKeys {
			if u, ok := byKey[key]; ok {
				results = append(results, MediaResult{
					TweetID: d.ID,
					Text:    d.Text,
					Name:    filepath.Base(u),
					URL:     u,
				})
				break
			}
		}
	}
	return results, nil
}

func (c *Client) getSearch(ctx context.Context, handle string, q url.Values, out *searchResponse) error {
	creds, err := c.creds.Credentials(handle)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindPlatform, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Download fetches a media URL into dir and returns the local path.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindPlatform, StatusCode: resp.StatusCode}
	}

	name := filepath.Base(strings.SplitN(rawURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "media"
	}
	out, err := os.CreateTemp(dir, "parrot-*-"+name)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("write download: %w", err)
	}
	return out.Name(), nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return newStatusError(resp.StatusCode, strings.TrimSpace(string(body)))
}
