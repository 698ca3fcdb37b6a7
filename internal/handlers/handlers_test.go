package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, tok string) (*services.Principal, error) {
	if tok != "good" {
		return nil, services.ErrUnauthorized
	}
	return &services.Principal{Subject: "alice", JTI: "j1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fakeRanker struct {
	calls   int
	gotTopK int
	out     []services.Match
	err     error
}

func (f *fakeRanker) Rank(_ context.Context, _ uint64, topK int) ([]services.Match, error) {
	f.calls++
	f.gotTopK = topK
	return f.out, f.err
}

type fakeLost struct {
	lostItemStore
	filter  services.ItemFilter
	created services.ItemInput
}

func (f *fakeLost) List(_ context.Context, fl services.ItemFilter) ([]storage.LostItem, error) {
	f.filter = fl
	return []storage.LostItem{{ID: 1, Name: "wallet", Tags: []storage.Tag{{ID: 2, Name: "leather"}}}}, nil
}

func (f *fakeLost) Create(_ context.Context, in services.ItemInput) (*storage.LostItem, error) {
	f.created = in
	return &storage.LostItem{ID: 9, Name: in.Name, CategoryID: in.CategoryID}, nil
}

func (f *fakeLost) Get(_ context.Context, id uint64) (*storage.LostItem, error) {
	return nil, &notFound{}
}

type notFound struct{}

func (*notFound) Error() string        { return "lost item not found" }
func (*notFound) Is(target error) bool { return target == services.ErrNotFound }

func newLostFound(r *fakeRanker, lost *fakeLost) *gin.Engine {
	cfg := config.Defaults()
	h := NewLostFound(cfg, LostFoundDeps{Lost: lost, Ranker: r, Verifier: fakeVerifier{}})
	e := gin.New()
	h.RegisterRoutes(e)
	return e
}

func serve(e http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestSimilarFoundItemsRoundsAndDefaultsTopK(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r := &fakeRanker{out: []services.Match{
		{Item: storage.FoundItem{ID: 3, Name: "Samsung Galaxy", FoundDate: day, Tags: []storage.Tag{{ID: 1, Name: "phone"}}}, Score: 91.996},
		{Item: storage.FoundItem{ID: 1, Name: "iPhone 12", FoundDate: day}, Score: 40.123},
	}}
	e := newLostFound(r, &fakeLost{})

	w := serve(e, http.MethodGet, "/lost_items/7/similar_found_items", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 5, r.gotTopK)

	var got []struct {
		FoundItem struct {
			ID   uint64 `json:"id"`
			Name string `json:"name"`
			Tags []struct {
				Name string `json:"name"`
			} `json:"tags"`
		} `json:"found_item"`
		SimilarityPercent float64 `json:"similarity_percent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "Samsung Galaxy", got[0].FoundItem.Name)
	require.Equal(t, 92.0, got[0].SimilarityPercent)
	require.Equal(t, "phone", got[0].FoundItem.Tags[0].Name)
	require.Equal(t, 40.12, got[1].SimilarityPercent)
}

func TestSimilarFoundItemsErrors(t *testing.T) {
	r := &fakeRanker{err: &notFound{}}
	e := newLostFound(r, &fakeLost{})
	w := serve(e, http.MethodGet, "/lost_items/7/similar_found_items?top_k=2", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "lost item not found")

	w = serve(e, http.MethodGet, "/lost_items/7/similar_found_items?top_k=abc", "", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(e, http.MethodGet, "/lost_items/zero/similar_found_items", "", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSimilarityRequestsCountsOnlyServedRankings(t *testing.T) {
	before := testutil.ToFloat64(metrics.SimilarityRequests)

	missing := newLostFound(&fakeRanker{err: &notFound{}}, &fakeLost{})
	require.Equal(t, http.StatusNotFound, serve(missing, http.MethodGet, "/lost_items/7/similar_found_items", "", "").Code)
	rejected := newLostFound(&fakeRanker{err: services.ErrInvalid}, &fakeLost{})
	require.Equal(t, http.StatusBadRequest, serve(rejected, http.MethodGet, "/lost_items/7/similar_found_items?top_k=0", "", "").Code)
	require.Equal(t, before, testutil.ToFloat64(metrics.SimilarityRequests))

	ok := newLostFound(&fakeRanker{out: []services.Match{}}, &fakeLost{})
	require.Equal(t, http.StatusOK, serve(ok, http.MethodGet, "/lost_items/7/similar_found_items", "", "").Code)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.SimilarityRequests))
}

func TestListLostItemsParsesFilter(t *testing.T) {
	lost := &fakeLost{}
	e := newLostFound(&fakeRanker{}, lost)
	q := url.Values{}
	q.Set("skip", "20")
	q.Set("limit", "500")
	q.Add("category_id", "1,2")
	q.Add("category_id", "5")
	q.Set("location", "Москва")
	q.Set("date_from", "2024-01-01")
	q.Set("order_by", "-date,name")
	w := serve(e, http.MethodGet, "/lost_items?"+q.Encode(), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 20, lost.filter.Skip)
	require.Equal(t, 100, lost.filter.Limit)
	require.Equal(t, []uint64{1, 2, 5}, lost.filter.CategoryIDs)
	require.Equal(t, "Москва", lost.filter.Location)
	require.NotNil(t, lost.filter.DateFrom)
	require.Nil(t, lost.filter.DateTo)
	require.Equal(t, "-date,name", lost.filter.OrderBy)
	require.Contains(t, w.Body.String(), `"leather"`)
}

func TestListLostItemsRejectsBadPaging(t *testing.T) {
	e := newLostFound(&fakeRanker{}, &fakeLost{})
	require.Equal(t, http.StatusUnprocessableEntity, serve(e, http.MethodGet, "/lost_items?skip=-1", "", "").Code)
	require.Equal(t, http.StatusUnprocessableEntity, serve(e, http.MethodGet, "/lost_items?limit=0", "", "").Code)
	require.Equal(t, http.StatusUnprocessableEntity, serve(e, http.MethodGet, "/lost_items?date_to=yesterday", "", "").Code)
}

func TestCreateLostItemRequiresToken(t *testing.T) {
	lost := &fakeLost{}
	e := newLostFound(&fakeRanker{}, lost)
	body := `{"category_id":3,"name":"Black Samsung phone","location":"Berlin"}`

	w := serve(e, http.MethodPost, "/lost_items", body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(e, http.MethodPost, "/lost_items", body, "good")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, uint64(3), lost.created.CategoryID)
	require.Nil(t, lost.created.Date)

	w = serve(e, http.MethodPost, "/lost_items", `{"name":"no category"}`, "good")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

type fakeAuctions struct {
	auctionStore
	bidUser string
	bidErr  error
	closed  []uint64
}

func (f *fakeAuctions) Close(_ context.Context, id uint64) (*storage.Auction, error) {
	f.closed = append(f.closed, id)
	return &storage.Auction{ID: id, Status: storage.AuctionFinished}, nil
}

func (f *fakeAuctions) PlaceBid(_ context.Context, id uint64, user string, amount float64) (*storage.Bid, error) {
	f.bidUser = user
	if f.bidErr != nil {
		return nil, f.bidErr
	}
	return &storage.Bid{ID: 1, AuctionID: id, UserExternalID: user, Amount: amount}, nil
}

type invalid struct{ msg string }

func (e *invalid) Error() string        { return e.msg }
func (e *invalid) Is(target error) bool { return target == services.ErrInvalid }

func TestCloseAuctionRequiresBearerOnly(t *testing.T) {
	store := &fakeAuctions{}
	e := gin.New()
	NewAuction(config.Defaults(), store, fakeVerifier{}, nil).RegisterRoutes(e)

	w := serve(e, http.MethodPost, "/auctions/4/close", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, store.closed)

	w = serve(e, http.MethodPost, "/auctions/4/close", "", "good")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []uint64{4}, store.closed)
	require.Contains(t, w.Body.String(), `"status":"finished"`)
}

func TestPlaceBidUsesTokenSubject(t *testing.T) {
	store := &fakeAuctions{}
	cfg := config.Defaults()
	e := gin.New()
	NewAuction(cfg, store, fakeVerifier{}, nil).RegisterRoutes(e)

	w := serve(e, http.MethodPost, "/auctions/4/bids", `{"amount":150,"user_external_id":"mallory"}`, "good")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "alice", store.bidUser)
	require.Contains(t, w.Body.String(), `"user_external_id":"alice"`)

	store.bidErr = &invalid{msg: "bid must be greater than the current price"}
	w = serve(e, http.MethodPost, "/auctions/4/bids", `{"amount":10}`, "good")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "greater than the current price")

	w = serve(e, http.MethodPost, "/auctions/4/bids", `{"amount":-1}`, "good")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(e, http.MethodPost, "/auctions/4/bids", `{"amount":10}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type fakeUsers struct{}

func (fakeUsers) Register(_ context.Context, username, _ string) (*storage.User, error) {
	return &storage.User{ID: 1, Username: username}, nil
}

func (fakeUsers) Authenticate(_ context.Context, username, password string) (*storage.User, error) {
	if password != "secret1" {
		return nil, services.ErrUnauthorized
	}
	return &storage.User{ID: 1, Username: username}, nil
}

type fakeTokens struct {
	fakeVerifier
	revoked bool
}

func (f *fakeTokens) Issue(subject string) (string, time.Time, string, error) {
	return "tok-" + subject, time.Now().Add(30 * time.Minute), "j1", nil
}

func (f *fakeTokens) Revoke(context.Context, *services.Principal) error {
	f.revoked = true
	return nil
}

func TestAuthTokenFormAndVerify(t *testing.T) {
	tokens := &fakeTokens{}
	e := gin.New()
	NewAuth(config.Defaults(), fakeUsers{}, tokens, nil).RegisterRoutes(e)

	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.Equal(t, "tok-alice", tok.AccessToken)
	require.Equal(t, "bearer", tok.TokenType)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = serve(e, http.MethodPost, "/auth/token", `{"username":"alice","password":"wrong"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(e, http.MethodGet, "/auth/verify", "", "good")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"username":"alice"}`, w.Body.String())

	w = serve(e, http.MethodPost, "/auth/logout", "", "good")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, tokens.revoked)
}

func TestHealthzReportsDegraded(t *testing.T) {
	e := gin.New()
	RegisterOps(e, "auction", map[string]Pinger{
		"mysql": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return context.DeadlineExceeded },
	})
	w := serve(e, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), `"status":"degraded"`)

	w = serve(e, http.MethodGet, "/", "", "")
	require.Contains(t, w.Body.String(), "Welcome to the auction service")
}
