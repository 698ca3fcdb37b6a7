package handlers

import (
	"math"
	"time"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

// 对外 JSON 视图；与存储模型解耦，避免泄漏内部字段（如口令哈希）。

type categoryView struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type tagView struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type lostItemView struct {
	ID          uint64        `json:"id"`
	CategoryID  uint64        `json:"category_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	LostDate    time.Time     `json:"lost_date"`
	Location    string        `json:"location"`
	Category    *categoryView `json:"category,omitempty"`
	Tags        []tagView     `json:"tags"`
}

type foundItemView struct {
	ID          uint64        `json:"id"`
	CategoryID  uint64        `json:"category_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	FoundDate   time.Time     `json:"found_date"`
	Location    string        `json:"location"`
	Category    *categoryView `json:"category,omitempty"`
	Tags        []tagView     `json:"tags"`
}

type matchView struct {
	FoundItem         foundItemView `json:"found_item"`
	SimilarityPercent float64       `json:"similarity_percent"`
}

type auctionView struct {
	ID                 uint64    `json:"id"`
	LostItemExternalID string    `json:"lost_item_external_id"`
	StartPrice         float64   `json:"start_price"`
	CurrentPrice       float64   `json:"current_price"`
	Status             string    `json:"status"`
	WinnerExternalID   string    `json:"winner_external_id"`
	IsActive           bool      `json:"is_active"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
}

type bidView struct {
	ID             uint64    `json:"id"`
	AuctionID      uint64    `json:"auction_id"`
	UserExternalID string    `json:"user_external_id"`
	Amount         float64   `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

func toCategoryView(c *storage.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Description: c.Description}
}

func toCategoryRef(c *storage.Category) *categoryView {
	if c == nil {
		return nil
	}
	v := toCategoryView(c)
	return &v
}

func toTagViews(tags []storage.Tag) []tagView {
	out := make([]tagView, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagView{ID: t.ID, Name: t.Name})
	}
	return out
}

func toLostItemView(it *storage.LostItem) lostItemView {
	return lostItemView{
		ID: it.ID, CategoryID: it.CategoryID, Name: it.Name, Description: it.Description,
		LostDate: it.LostDate, Location: it.Location, Category: toCategoryRef(it.Category), Tags: toTagViews(it.Tags),
	}
}

func toFoundItemView(it *storage.FoundItem) foundItemView {
	return foundItemView{
		ID: it.ID, CategoryID: it.CategoryID, Name: it.Name, Description: it.Description,
		FoundDate: it.FoundDate, Location: it.Location, Category: toCategoryRef(it.Category), Tags: toTagViews(it.Tags),
	}
}

// toMatchViews 输出时把分数四舍五入到两位小数。
func toMatchViews(ms []services.Match) []matchView {
	out := make([]matchView, 0, len(ms))
	for i := range ms {
		out = append(out, matchView{
			FoundItem:         toFoundItemView(&ms[i].Item),
			SimilarityPercent: math.Round(ms[i].Score*100) / 100,
		})
	}
	return out
}

func toAuctionView(a *storage.Auction) auctionView {
	return auctionView{
		ID: a.ID, LostItemExternalID: a.LostItemExternalID, StartPrice: a.StartPrice, CurrentPrice: a.CurrentPrice,
		Status: a.Status, WinnerExternalID: a.WinnerExternalID, IsActive: a.IsActive, StartTime: a.StartTime, EndTime: a.EndTime,
	}
}

func toBidView(b *storage.Bid) bidView {
	return bidView{ID: b.ID, AuctionID: b.AuctionID, UserExternalID: b.UserExternalID, Amount: b.Amount, Timestamp: b.Timestamp}
}
