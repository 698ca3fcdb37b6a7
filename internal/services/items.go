package services

// 失物（LostItem）与招领（FoundItem）服务。两类物品结构一致，
// 公共的查询/过滤/排序/标签关联逻辑集中在 itemRepo，类型化的服务只做薄包装。

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

// ItemFilter 为列表查询的过滤、排序与分页参数。
type ItemFilter struct {
	CategoryIDs []uint64
	// 地点子串匹配（大小写不敏感）
	Location string
	DateFrom *time.Time
	DateTo   *time.Time
	// 逗号分隔的字段列表；前缀 "-" 表示该字段倒序
	OrderBy  string
	SortDesc bool
	Skip     int
	Limit    int
}

// ItemInput 为创建物品的入参；Date 为空时取当前时间。
type ItemInput struct {
	CategoryID  uint64
	Name        string
	Description string
	Location    string
	Date        *time.Time
}

// ItemPatch 为局部更新；nil 字段保持不变。
type ItemPatch struct {
	CategoryID  *uint64
	Name        *string
	Description *string
	Location    *string
	Date        *time.Time
}

type itemRepo struct {
	db         *gorm.DB
	label      string
	dateColumn string
}

func orderTags(db *gorm.DB) *gorm.DB { return db.Order("tags.id") }

func (r itemRepo) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Category").Preload("Tags", orderTags)
}

func (r itemRepo) first(ctx context.Context, dst interface{}, id uint64) error {
	if err := r.preloaded(ctx).First(dst, id).Error; err != nil {
		return notFoundOr(err, r.label)
	}
	return nil
}

func (r itemRepo) list(ctx context.Context, dst interface{}, f ItemFilter) error {
	return r.preloaded(ctx).Scopes(filterScope(f, r.dateColumn)).Find(dst).Error
}

func (r itemRepo) listAll(ctx context.Context, dst interface{}) error {
	return r.preloaded(ctx).Order("id").Find(dst).Error
}

func (r itemRepo) checkCategory(ctx context.Context, id uint64) error {
	var c storage.Category
	if err := r.db.WithContext(ctx).Select("id").First(&c, id).Error; err != nil {
		return notFoundOr(err, "category")
	}
	return nil
}

func (r itemRepo) loadTag(ctx context.Context, id uint64) (*storage.Tag, error) {
	var t storage.Tag
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFoundOr(err, "tag")
	}
	return &t, nil
}

// patchColumns 把 patch 转成待更新的列；分类变更需先校验存在。
func (r itemRepo) patchColumns(ctx context.Context, p ItemPatch) (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if p.CategoryID != nil {
		if err := r.checkCategory(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
		cols["category_id"] = *p.CategoryID
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return nil, newError(ErrInvalid, "name must not be empty")
		}
		cols["name"] = n
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.Date != nil {
		cols[r.dateColumn] = *p.Date
	}
	return cols, nil
}

func (r itemRepo) update(ctx context.Context, owner interface{}, cols map[string]interface{}) error {
	if len(cols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(owner).Omit(clause.Associations).Updates(cols).Error
}

func (r itemRepo) attach(ctx context.Context, owner interface{}, tag *storage.Tag) error {
	return r.db.WithContext(ctx).Model(owner).Association("Tags").Append(tag)
}

func (r itemRepo) detach(ctx context.Context, owner interface{}, tag *storage.Tag) error {
	return r.db.WithContext(ctx).Model(owner).Association("Tags").Delete(tag)
}

// remove 先清理标签关联再删除物品本身。
func (r itemRepo) remove(ctx context.Context, owner interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(owner).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(owner).Error
	})
}

func validateInput(in ItemInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return newError(ErrInvalid, "name is required")
	}
	if in.CategoryID == 0 {
		return newError(ErrInvalid, "category_id is required")
	}
	return nil
}

func dateOrNow(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return time.Now()
	}
	return *d
}

func hasTag(tags []storage.Tag, id uint64) bool {
	for _, t := range tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// filterScope 构建列表查询的 GORM scope：分类、地点、日期区间、排序与分页。
func filterScope(f ItemFilter, dateColumn string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(f.CategoryIDs) == 1 {
			db = db.Where("category_id = ?", f.CategoryIDs[0])
		} else if len(f.CategoryIDs) > 1 {
			db = db.Where("category_id IN ?", f.CategoryIDs)
		}
		if loc := strings.TrimSpace(f.Location); loc != "" {
			db = db.Where("LOWER(location) LIKE ?", "%"+escapeLike(strings.ToLower(loc))+"%")
		}
		if f.DateFrom != nil {
			db = db.Where(dateColumn+" >= ?", *f.DateFrom)
		}
		if f.DateTo != nil {
			db = db.Where(dateColumn+" <= ?", *f.DateTo)
		}
		for _, ob := range orderColumns(f.OrderBy, f.SortDesc, dateColumn) {
			db = db.Order(ob)
		}
		if f.Skip > 0 {
			db = db.Offset(f.Skip)
		}
		if f.Limit > 0 {
			db = db.Limit(f.Limit)
		}
		return db
	}
}

// orderColumns 解析 order_by。只接受白名单字段，未知字段忽略；"date" 是日期列的别名。
func orderColumns(orderBy string, sortDesc bool, dateColumn string) []clause.OrderByColumn {
	allowed := map[string]string{
		"id":          "id",
		"name":        "name",
		"location":    "location",
		"category_id": "category_id",
		"date":        dateColumn,
		dateColumn:    dateColumn,
	}
	var out []clause.OrderByColumn
	seen := map[string]bool{}
	for _, part := range strings.Split(orderBy, ",") {
		part = strings.TrimSpace(part)
		desc := sortDesc
		if strings.HasPrefix(part, "-") {
			desc = true
			part = strings.TrimSpace(part[1:])
		}
		col, ok := allowed[part]
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc})
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// LostItemService 管理失物记录。
type LostItemService struct{ repo itemRepo }

func NewLostItemService(db *gorm.DB) *LostItemService {
	return &LostItemService{repo: itemRepo{db: db, label: "lost item", dateColumn: "lost_date"}}
}

// Create 创建失物；分类不存在时返回 ErrNotFound。
func (s *LostItemService) Create(ctx context.Context, in ItemInput) (*storage.LostItem, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.repo.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	item := &storage.LostItem{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Location:    in.Location,
		CategoryID:  in.CategoryID,
		LostDate:    dateOrNow(in.Date),
	}
	if err := s.repo.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, item.ID)
}

// Get 读取失物并加载分类与标签。
func (s *LostItemService) Get(ctx context.Context, id uint64) (*storage.LostItem, error) {
	var item storage.LostItem
	if err := s.repo.first(ctx, &item, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *LostItemService) List(ctx context.Context, f ItemFilter) ([]storage.LostItem, error) {
	var items []storage.LostItem
	if err := s.repo.list(ctx, &items, f); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *LostItemService) Update(ctx context.Context, id uint64, p ItemPatch) (*storage.LostItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cols, err := s.repo.patchColumns(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.update(ctx, &storage.LostItem{ID: item.ID}, cols); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *LostItemService) Delete(ctx context.Context, id uint64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.remove(ctx, item)
}

// AttachTag 为失物关联标签；已关联时不重复写入。
func (s *LostItemService) AttachTag(ctx context.Context, id, tagID uint64) (*storage.LostItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tag, err := s.repo.loadTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if hasTag(item.Tags, tag.ID) {
		return item, nil
	}
	if err := s.repo.attach(ctx, item, tag); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// DetachTag 解除关联；关联不存在时什么也不做。
func (s *LostItemService) DetachTag(ctx context.Context, id, tagID uint64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	tag, err := s.repo.loadTag(ctx, tagID)
	if err != nil {
		return err
	}
	if !hasTag(item.Tags, tag.ID) {
		return nil
	}
	return s.repo.detach(ctx, item, tag)
}

// FoundItemService 管理招领记录。
type FoundItemService struct{ repo itemRepo }

func NewFoundItemService(db *gorm.DB) *FoundItemService {
	return &FoundItemService{repo: itemRepo{db: db, label: "found item", dateColumn: "found_date"}}
}

func (s *FoundItemService) Create(ctx context.Context, in ItemInput) (*storage.FoundItem, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.repo.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	item := &storage.FoundItem{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Location:    in.Location,
		CategoryID:  in.CategoryID,
		FoundDate:   dateOrNow(in.Date),
	}
	if err := s.repo.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, item.ID)
}

func (s *FoundItemService) Get(ctx context.Context, id uint64) (*storage.FoundItem, error) {
	var item storage.FoundItem
	if err := s.repo.first(ctx, &item, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *FoundItemService) List(ctx context.Context, f ItemFilter) ([]storage.FoundItem, error) {
	var items []storage.FoundItem
	if err := s.repo.list(ctx, &items, f); err != nil {
		return nil, err
	}
	return items, nil
}

// ListAll 返回全部招领物品（不分页，按 id 升序），供相似度排序使用。
func (s *FoundItemService) ListAll(ctx context.Context) ([]storage.FoundItem, error) {
	var items []storage.FoundItem
	if err := s.repo.listAll(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *FoundItemService) Update(ctx context.Context, id uint64, p ItemPatch) (*storage.FoundItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cols, err := s.repo.patchColumns(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.update(ctx, &storage.FoundItem{ID: item.ID}, cols); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *FoundItemService) Delete(ctx context.Context, id uint64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.remove(ctx, item)
}

func (s *FoundItemService) AttachTag(ctx context.Context, id, tagID uint64) (*storage.FoundItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tag, err := s.repo.loadTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if hasTag(item.Tags, tag.ID) {
		return item, nil
	}
	if err := s.repo.attach(ctx, item, tag); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *FoundItemService) DetachTag(ctx context.Context, id, tagID uint64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	tag, err := s.repo.loadTag(ctx, tagID)
	if err != nil {
		return err
	}
	if !hasTag(item.Tags, tag.ID) {
		return nil
	}
	return s.repo.detach(ctx, item, tag)
}
