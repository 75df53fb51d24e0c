package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Mention is one tweet that @-mentions the authenticated account.
type Mention struct {
	ID       string
	Text     string
	AuthorID string
	Username string
}

type mentionsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		AuthorID string `json:"author_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// Mentions fetches up to maxCount recent tweets mentioning the handle's
// account, newest first.
func (c *Client) Mentions(ctx context.Context, handle string, maxCount int) ([]Mention, error) {
	if maxCount <= 0 || maxCount > 100 {
		maxCount = 20
	}
	userID, err := c.userID(ctx, handle)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", fmt.Sprint(maxCount))
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	creds, err := c.creds.Credentials(handle)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/2/users/%s/mentions?%s", c.baseURL, userID, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var decoded mentionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Kind: KindPlatform, Err: fmt.Errorf("decode response: %w", err)}
	}

	names := make(map[string]string, len(decoded.Includes.Users))
	for _, u := range decoded.Includes.Users {
		names[u.ID] = u.Username
	}
	mentions := make([]Mention, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		mentions = append(mentions, Mention{
			ID:       d.ID,
			Text:     d.Text,
			AuthorID: d.AuthorID,
			Username: names[d.AuthorID],
		})
	}
	return mentions, nil
}

// Search finds recent tweets matching query, excluding retweets.
func (c *Client) Search(ctx context.Context, handle, query string, maxCount int) ([]Post, error) {
	if maxCount <= 0 || maxCount > 100 {
		maxCount = 15
	}
	q := url.Values{}
	q.Set("query", query+" -is:retweet")
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

// Like marks a tweet as liked by the handle's account.
func (c *Client) Like(ctx context.Context, handle, tweetID string) error {
	return c.userAction(ctx, handle, "likes", tweetID)
}

// Retweet reposts a tweet from the handle's account.
func (c *Client) Retweet(ctx context.Context, handle, tweetID string) error {
	return c.userAction(ctx, handle, "retweets", tweetID)
}

func (c *Client) userAction(ctx context.Context, handle, action, tweetID string) error {
	userID, err := c.userID(ctx, handle)
	if err != nil {
		return err
	}
	creds, err := c.creds.Credentials(handle)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"tweet_id": tweetID})
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}
	endpoint := fmt.Sprintf("%s/2/users/%s/%s", c.baseURL, userID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

type meResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// userID resolves the platform user id behind a handle's credentials and
// caches it for the life of the client.
func (c *Client) userID(ctx context.Context, handle string) (string, error) {
	c.mu.Lock()
	if id, ok := c.userIDs[handle]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	creds, err := c.creds.Credentials(handle)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var decoded meResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindPlatform, Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Data.ID == "" {
		return "", &Error{Kind: KindPlatform, Err: fmt.Errorf("empty user id in response")}
	}

	c.mu.Lock()
	c.userIDs[handle] = decoded.Data.ID
	c.mu.Unlock()
	return decoded.Data.ID, nil
}
