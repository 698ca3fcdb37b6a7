package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

type stubChecker struct {
	err   error
	calls int
}

func (s *stubChecker) Exists(context.Context, string) error {
	s.calls++
	return s.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

var auctionCols = []string{"id", "lost_item_external_id", "start_price", "current_price", "start_time", "end_time", "status", "winner_external_id", "is_active"}

func newAuctionService(t *testing.T, checker *stubChecker) (*AuctionService, sqlmock.Sqlmock, *recordingNotifier, time.Time) {
	db, mock := newMockDB(t)
	n := &recordingNotifier{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewAuctionService(db, checker, n, config.AuctionConfig{DefaultDuration: 4 * time.Hour})
	s.now = func() time.Time { return now }
	return s, mock, n, now
}

func TestValidateBid(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	open := storage.Auction{IsActive: true, CurrentPrice: 100, EndTime: now.Add(time.Hour)}
	cases := []struct {
		name    string
		a       storage.Auction
		amount  float64
		wantErr bool
	}{
		{"higher bid accepted", open, 100.01, false},
		{"equal to current rejected", open, 100, true},
		{"lower rejected", open, 50, true},
		{"inactive rejected", storage.Auction{IsActive: false, CurrentPrice: 1, EndTime: now.Add(time.Hour)}, 10, true},
		{"ended rejected", storage.Auction{IsActive: true, CurrentPrice: 1, EndTime: now}, 10, true},
		{"no end time accepted", storage.Auction{IsActive: true, CurrentPrice: 1}, 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateBid(&tc.a, tc.amount, now)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCreateAuctionDefaults(t *testing.T) {
	checker := &stubChecker{}
	s, mock, n, now := newAuctionService(t, checker)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `auctions` WHERE (.+) FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO `auctions`").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	a, err := s.Create(context.Background(), AuctionInput{LostItemExternalID: "17", StartPrice: 50})
	require.NoError(t, err)
	require.Equal(t, uint64(3), a.ID)
	require.Equal(t, 50.0, a.CurrentPrice)
	require.Equal(t, now.Add(4*time.Hour), a.EndTime)
	require.Equal(t, storage.AuctionScheduled, a.Status)
	require.True(t, a.IsActive)
	require.Equal(t, []string{EventAuctionCreated}, n.events)
}

func TestCreateAuctionRejectsMissingLostItem(t *testing.T) {
	checker := &stubChecker{err: newError(ErrInvalid, "lost item not found")}
	s, _, n, _ := newAuctionService(t, checker)

	_, err := s.Create(context.Background(), AuctionInput{LostItemExternalID: "404", StartPrice: 1})
	require.ErrorIs(t, err, ErrInvalid)
	require.Equal(t, 1, checker.calls)
	require.Empty(t, n.events)
}

func TestCreateAuctionConflict(t *testing.T) {
	s, mock, _, _ := newAuctionService(t, &stubChecker{})
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `auctions` WHERE (.+) FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), AuctionInput{LostItemExternalID: "17", StartPrice: 1})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreateAuctionSecondCreateSeesLockedActiveRow(t *testing.T) {
	checker := &stubChecker{}
	s, mock, n, _ := newAuctionService(t, checker)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `auctions` WHERE (.+) FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO `auctions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `auctions` WHERE (.+) FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	first, err := s.Create(context.Background(), AuctionInput{LostItemExternalID: "17", StartPrice: 5})
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.ID)

	_, err = s.Create(context.Background(), AuctionInput{LostItemExternalID: "17", StartPrice: 5})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 2, checker.calls)
	require.Equal(t, []string{EventAuctionCreated}, n.events)
}

func TestCreateAuctionInputValidation(t *testing.T) {
	checker := &stubChecker{}
	s, _, _, now := newAuctionService(t, checker)
	low := 1.0
	past := now.Add(-time.Minute)
	for _, in := range []AuctionInput{
		{StartPrice: 1},
		{LostItemExternalID: "1", StartPrice: -1},
		{LostItemExternalID: "1", StartPrice: 5, CurrentPrice: &low},
		{LostItemExternalID: "1", StartPrice: 5, EndTime: &past},
	} {
		_, err := s.Create(context.Background(), in)
		require.ErrorIs(t, err, ErrInvalid)
	}
	require.Zero(t, checker.calls)
}

func TestPlaceBid(t *testing.T) {
	s, mock, n, now := newAuctionService(t, &stubChecker{})
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `auctions` (.+) FOR UPDATE").WillReturnRows(
		sqlmock.NewRows(auctionCols).AddRow(2, "17", 50.0, 100.0, now.Add(-time.Hour), now.Add(time.Hour), "scheduled", "", true))
	mock.ExpectExec("INSERT INTO `bids`").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("UPDATE `auctions` SET `current_price`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := s.PlaceBid(context.Background(), 2, "alice", 150)
	require.NoError(t, err)
	require.Equal(t, uint64(5), b.ID)
	require.Equal(t, "alice", b.UserExternalID)
	require.Equal(t, now, b.Timestamp)
	require.Equal(t, []string{EventBidPlaced}, n.events)
}

func TestPlaceBidTooLowRollsBack(t *testing.T) {
	s, mock, n, now := newAuctionService(t, &stubChecker{})
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `auctions` (.+) FOR UPDATE").WillReturnRows(
		sqlmock.NewRows(auctionCols).AddRow(2, "17", 50.0, 100.0, now.Add(-time.Hour), now.Add(time.Hour), "scheduled", "", true))
	mock.ExpectRollback()

	_, err := s.PlaceBid(context.Background(), 2, "alice", 100)
	require.ErrorIs(t, err, ErrInvalid)
	require.Empty(t, n.events)
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	s, mock, _, _ := newAuctionService(t, &stubChecker{})
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `auctions` (.+) FOR UPDATE").WillReturnRows(sqlmock.NewRows(auctionCols))
	mock.ExpectRollback()

	_, err := s.PlaceBid(context.Background(), 9, "alice", 10)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "auction not found", err.Error())
}

func TestCloseAuctionPicksHighestBidder(t *testing.T) {
	s, mock, n, now := newAuctionService(t, &stubChecker{})
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `auctions` (.+) FOR UPDATE").WillReturnRows(
		sqlmock.NewRows(auctionCols).AddRow(2, "17", 50.0, 180.0, now.Add(-time.Hour), now.Add(time.Hour), "scheduled", "", true))
	mock.ExpectQuery("SELECT (.+) FROM `bids`").WillReturnRows(
		sqlmock.NewRows([]string{"id", "auction_id", "user_external_id", "amount", "timestamp"}).AddRow(8, 2, "bob", 180.0, now))
	mock.ExpectExec("UPDATE `auctions` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	a, err := s.Close(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, a.IsActive)
	require.Equal(t, storage.AuctionFinished, a.Status)
	require.Equal(t, "bob", a.WinnerExternalID)
	require.Equal(t, []string{EventAuctionClosed}, n.events)
}

func TestListBidsUnknownAuction(t *testing.T) {
	s, mock, _, _ := newAuctionService(t, &stubChecker{})
	mock.ExpectQuery("SELECT (.+) FROM `auctions`").WillReturnRows(sqlmock.NewRows(auctionCols))

	_, err := s.ListBids(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}
