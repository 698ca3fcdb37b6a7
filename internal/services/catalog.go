package services

// 分类与标签服务：名称唯一，被物品引用但不被物品拥有。

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

// CategoryService 提供分类的 CRUD。
type CategoryService struct{ db *gorm.DB }

func NewCategoryService(db *gorm.DB) *CategoryService { return &CategoryService{db: db} }

func (s *CategoryService) Create(ctx context.Context, name, description string) (*storage.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrInvalid, "category name is required")
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}
	c := &storage.Category{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, id uint64) (*storage.Category, error) {
	var c storage.Category
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "category")
	}
	return &c, nil
}

func (s *CategoryService) List(ctx context.Context) ([]storage.Category, error) {
	var list []storage.Category
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Update 局部更新；nil 字段保持不变。
func (s *CategoryService) Update(ctx context.Context, id uint64, name, description *string) (*storage.Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, newError(ErrInvalid, "category name is required")
		}
		if n != c.Name {
			if err := s.ensureNameFree(ctx, n, c.ID); err != nil {
				return nil, err
			}
		}
		c.Name = n
	}
	if description != nil {
		c.Description = *description
	}
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Delete 删除分类；仍被失物或招领物品引用时返回 ErrConflict。
func (s *CategoryService) Delete(ctx context.Context, id uint64) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var refs int64
	if err := s.db.WithContext(ctx).Model(&storage.LostItem{}).Where("category_id = ?", c.ID).Count(&refs).Error; err != nil {
		return err
	}
	if refs == 0 {
		if err := s.db.WithContext(ctx).Model(&storage.FoundItem{}).Where("category_id = ?", c.ID).Count(&refs).Error; err != nil {
			return err
		}
	}
	if refs > 0 {
		return newError(ErrConflict, "category is referenced by items")
	}
	return s.db.WithContext(ctx).Delete(c).Error
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name string, selfID uint64) error {
	var existing storage.Category
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return newError(ErrInvalid, "category with this name already exists")
}

// TagService 提供标签的 CRUD。
type TagService struct{ db *gorm.DB }

func NewTagService(db *gorm.DB) *TagService { return &TagService{db: db} }

func (s *TagService) Create(ctx context.Context, name string) (*storage.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrInvalid, "tag name is required")
	}
	if err := s.ensureNameFree(ctx, name, "tag with this name already exists"); err != nil {
		return nil, err
	}
	t := &storage.Tag{Name: name}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TagService) Get(ctx context.Context, id uint64) (*storage.Tag, error) {
	var t storage.Tag
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFoundOr(err, "tag")
	}
	return &t, nil
}

func (s *TagService) List(ctx context.Context) ([]storage.Tag, error) {
	var list []storage.Tag
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Rename 修改标签名；新名称已被其它标签占用时返回 ErrInvalid。
func (s *TagService) Rename(ctx context.Context, id uint64, name string) (*storage.Tag, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrInvalid, "tag name is required")
	}
	if name != t.Name {
		if err := s.ensureNameFree(ctx, name, "another tag with this name already exists"); err != nil {
			return nil, err
		}
	}
	t.Name = name
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// Delete 删除标签并清理两张关联表中的记录；关联的物品本身保留。
func (s *TagService) Delete(ctx context.Context, id uint64) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM lostitem_tag WHERE tag_id = ?", t.ID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM founditem_tag WHERE tag_id = ?", t.ID).Error; err != nil {
			return err
		}
		return tx.Delete(t).Error
	})
}

func (s *TagService) ensureNameFree(ctx context.Context, name, msg string) error {
	var existing storage.Tag
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return newError(ErrInvalid, msg)
}
