package storage

import (
	"time"

	"gorm.io/gorm"
)

// 本文件定义三个服务使用的全部 GORM 模型，集中管理数据结构。

// Category 被物品引用，不随物品删除。
type Category struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:190;uniqueIndex"`
	Description string `gorm:"type:text"`
}

type Tag struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:190;uniqueIndex"`
}

// LostItem 与 FoundItem 结构一致，语义不同；二者之间没有外键，只通过相似度匹配关联。
type LostItem struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"size:190;index"`
	Description string    `gorm:"type:text"`
	LostDate    time.Time `gorm:"index"`
	Location    string    `gorm:"size:255"`
	CategoryID  uint64    `gorm:"index"`
	Category    *Category
	Tags        []Tag `gorm:"many2many:lostitem_tag;"`
}

type FoundItem struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"size:190;index"`
	Description string    `gorm:"type:text"`
	FoundDate   time.Time `gorm:"index"`
	Location    string    `gorm:"size:255"`
	CategoryID  uint64    `gorm:"index"`
	Category    *Category
	Tags        []Tag `gorm:"many2many:founditem_tag;"`
}

// User 为 auth 服务的账户；Password 保存 bcrypt 哈希。
type User struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"size:190;uniqueIndex"`
	Password  string `gorm:"size:255"`
	CreatedAt time.Time
}

// 拍卖状态
const (
	AuctionScheduled = "scheduled"
	AuctionFinished  = "finished"
)

// Auction 引用 lost_found 服务中的失物（LostItemExternalID），不做跨库外键。
type Auction struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	LostItemExternalID string `gorm:"size:64;index"`
	StartPrice         float64
	CurrentPrice       float64
	StartTime          time.Time
	EndTime            time.Time `gorm:"index"`
	Status             string    `gorm:"size:32;index;default:scheduled"`
	WinnerExternalID   string    `gorm:"size:190"` // auth 服务中的用户名
	IsActive           bool      `gorm:"index"`
	Bids               []Bid
}

type Bid struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	AuctionID      uint64 `gorm:"index"`
	UserExternalID string `gorm:"size:190;index"`
	Amount         float64
	Timestamp      time.Time `gorm:"index"`
}

// LostFoundModels 为 lost_found 服务的表集合。
func LostFoundModels() []interface{} {
	return []interface{}{&Category{}, &Tag{}, &LostItem{}, &FoundItem{}}
}

func AuctionModels() []interface{} { return []interface{}{&Auction{}, &Bid{}} }

func AuthModels() []interface{} { return []interface{}{&User{}} }

// autoMigrate 执行数据库自动迁移。
func autoMigrate(db *gorm.DB, models ...interface{}) error {
	if len(models) == 0 {
		return nil
	}
	return db.AutoMigrate(models...)
}
