package services

// 拍卖与出价服务。出价在事务内对拍卖行加锁，保证并发出价时当前价单调递增。

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

type lostItemChecker interface {
	Exists(ctx context.Context, id string) error
}

// AuctionInput 为创建拍卖的入参；可选字段为 nil 时取默认值。
type AuctionInput struct {
	LostItemExternalID string
	StartPrice         float64
	CurrentPrice       *float64
	EndTime            *time.Time
}

// AuctionFilter 为列表过滤条件；零值表示不过滤。
type AuctionFilter struct {
	Status   string
	IsActive *bool
}

// AuctionService 管理拍卖生命周期与出价。
type AuctionService struct {
	db       *gorm.DB
	items    lostItemChecker
	notify   Notifier
	duration time.Duration
	now      func() time.Time
}

func NewAuctionService(db *gorm.DB, items lostItemChecker, notify Notifier, cfg config.AuctionConfig) *AuctionService {
	if notify == nil {
		notify = NopNotifier{}
	}
	d := cfg.DefaultDuration
	if d <= 0 {
		d = 4 * time.Hour
	}
	return &AuctionService{db: db, items: items, notify: notify, duration: d, now: time.Now}
}

// Create 校验失物存在后创建拍卖；同一失物同时只允许一个进行中的拍卖。
func (s *AuctionService) Create(ctx context.Context, in AuctionInput) (*storage.Auction, error) {
	in.LostItemExternalID = strings.TrimSpace(in.LostItemExternalID)
	if in.LostItemExternalID == "" {
		return nil, newError(ErrInvalid, "lost_item_external_id is required")
	}
	if in.StartPrice < 0 {
		return nil, newError(ErrInvalid, "start_price must not be negative")
	}
	current := in.StartPrice
	if in.CurrentPrice != nil {
		if *in.CurrentPrice < in.StartPrice {
			return nil, newError(ErrInvalid, "current_price must not be below start_price")
		}
		current = *in.CurrentPrice
	}
	now := s.now()
	end := now.Add(s.duration)
	if in.EndTime != nil {
		if !in.EndTime.After(now) {
			return nil, newError(ErrInvalid, "end_time must be in the future")
		}
		end = *in.EndTime
	}
	if err := s.items.Exists(ctx, in.LostItemExternalID); err != nil {
		return nil, err
	}
	a := &storage.Auction{
		LostItemExternalID: in.LostItemExternalID,
		StartPrice:         in.StartPrice,
		CurrentPrice:       current,
		StartTime:          now,
		EndTime:            end,
		Status:             storage.AuctionScheduled,
		IsActive:           true,
	}
	// FOR UPDATE 在 lost_item_external_id 索引上加 next-key 锁，无匹配行时同样锁住该区间，
	// 并发创建同一失物的拍卖会在此排队。
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []uint64
		if err := tx.Model(&storage.Auction{}).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lost_item_external_id = ? AND is_active = ?", in.LostItemExternalID, true).
			Pluck("id", &active).Error; err != nil {
			return err
		}
		if len(active) > 0 {
			return newError(ErrConflict, "an active auction already exists for this lost item")
		}
		return tx.Omit(clause.Associations).Create(a).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, EventAuctionCreated, a)
	return a, nil
}

func (s *AuctionService) Get(ctx context.Context, id uint64) (*storage.Auction, error) {
	var a storage.Auction
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFoundOr(err, "auction")
	}
	return &a, nil
}

func (s *AuctionService) List(ctx context.Context, f AuctionFilter) ([]storage.Auction, error) {
	q := s.db.WithContext(ctx).Model(&storage.Auction{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	var list []storage.Auction
	if err := q.Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Close 结束拍卖，最高出价者成为赢家（无出价则为空）。重复关闭返回 ErrInvalid。
func (s *AuctionService) Close(ctx context.Context, id uint64) (*storage.Auction, error) {
	var out storage.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, id).Error; err != nil {
			return notFoundOr(err, "auction")
		}
		if !out.IsActive {
			return newError(ErrInvalid, "auction is not active")
		}
		var top storage.Bid
		err := tx.Where("auction_id = ?", out.ID).Order("amount DESC").Order("id").First(&top).Error
		switch {
		case err == nil:
			out.WinnerExternalID = top.UserExternalID
		case errors.Is(err, gorm.ErrRecordNotFound):
			out.WinnerExternalID = ""
		default:
			return err
		}
		out.IsActive = false
		out.Status = storage.AuctionFinished
		return tx.Model(&storage.Auction{ID: out.ID}).Updates(map[string]interface{}{
			"is_active":          false,
			"status":             storage.AuctionFinished,
			"winner_external_id": out.WinnerExternalID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, EventAuctionClosed, &out)
	return &out, nil
}

// PlaceBid 以 user 名义出价；金额必须严格高于当前价。
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID uint64, user string, amount float64) (*storage.Bid, error) {
	if strings.TrimSpace(user) == "" {
		return nil, newError(ErrUnauthorized, "bidder identity required")
	}
	var bid *storage.Bid
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a storage.Auction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, auctionID).Error; err != nil {
			return notFoundOr(err, "auction")
		}
		now := s.now()
		if err := validateBid(&a, amount, now); err != nil {
			return err
		}
		bid = &storage.Bid{AuctionID: a.ID, UserExternalID: user, Amount: amount, Timestamp: now}
		if err := tx.Create(bid).Error; err != nil {
			return err
		}
		return tx.Model(&storage.Auction{ID: a.ID}).Update("current_price", amount).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, EventBidPlaced, bid)
	return bid, nil
}

// ListBids 按时间顺序返回拍卖的全部出价。
func (s *AuctionService) ListBids(ctx context.Context, auctionID uint64) ([]storage.Bid, error) {
	if _, err := s.Get(ctx, auctionID); err != nil {
		return nil, err
	}
	var bids []storage.Bid
	if err := s.db.WithContext(ctx).Where("auction_id = ?", auctionID).Order("id").Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func validateBid(a *storage.Auction, amount float64, now time.Time) error {
	if !a.IsActive {
		return newError(ErrInvalid, "auction is not active")
	}
	if !a.EndTime.IsZero() && !now.Before(a.EndTime) {
		return newError(ErrInvalid, "auction has ended")
	}
	if amount <= a.CurrentPrice {
		return newError(ErrInvalid, "bid must be greater than the current price")
	}
	return nil
}
