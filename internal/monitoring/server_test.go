package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotlabs/parrot/internal/account"
)

type fakeStates struct {
	state account.State
	audit []account.AuditRecord
}

func (f *fakeStates) State(ctx context.Context, handle string) account.State {
	return f.state
}

func (f *fakeStates) ReadAudit(handle string) ([]account.AuditRecord, error) {
	return f.audit, nil
}

func TestStatusHandlerIncludesRecentAudit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	states := &fakeStates{
		state: account.State{PostsToday: 2, LastPostDate: "2026-08-29"},
		audit: []account.AuditRecord{
			{Timestamp: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC), Outcome: account.OutcomePosted, PostID: "111"},
			{Timestamp: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), Outcome: account.OutcomeRejected("blocklist")},
		},
	}
	s := NewServer(ServerConfig{Handles: []string{"alice"}}, nil, states, nil)

	router := gin.New()
	router.GET("/status", s.statusHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Handles map[string]struct {
			PostsToday int          `json:"posts_today"`
			Recent     []auditEntry `json:"recent"`
		} `json:"handles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	alice := body.Handles["alice"]
	assert.Equal(t, 2, alice.PostsToday)
	require.Len(t, alice.Recent, 2)
	// Newest first.
	assert.Equal(t, account.OutcomeRejected("blocklist"), alice.Recent[0].Outcome)
	assert.Equal(t, "111", alice.Recent[1].PostID)
}

func TestRecentAuditCapped(t *testing.T) {
	states := &fakeStates{}
	for i := 0; i < recentAuditLimit+5; i++ {
		states.audit = append(states.audit, account.AuditRecord{Outcome: account.OutcomePosted})
	}
	s := NewServer(ServerConfig{}, nil, states, nil)

	assert.Len(t, s.recentAudit("alice"), recentAuditLimit)
}
