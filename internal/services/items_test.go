package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

func TestOrderColumns(t *testing.T) {
	got := orderColumns("-date, name,bogus,name", false, "lost_date")
	require.Equal(t, []clause.OrderByColumn{
		{Column: clause.Column{Name: "lost_date"}, Desc: true},
		{Column: clause.Column{Name: "name"}},
	}, got)

	got = orderColumns("location", true, "found_date")
	require.Equal(t, []clause.OrderByColumn{{Column: clause.Column{Name: "location"}, Desc: true}}, got)

	require.Empty(t, orderColumns("", false, "lost_date"))
	require.Empty(t, orderColumns("password; DROP TABLE users", false, "lost_date"))
}

func TestFilterScopeSQL(t *testing.T) {
	db, _ := newMockDB(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := ItemFilter{
		CategoryIDs: []uint64{1, 2},
		Location:    "Москва",
		DateFrom:    &from,
		OrderBy:     "-date,name",
		Skip:        10,
		Limit:       5,
	}
	stmt := db.Session(&gorm.Session{DryRun: true}).Model(&storage.LostItem{}).
		Scopes(filterScope(f, "lost_date")).Find(&[]storage.LostItem{}).Statement
	sql := stmt.SQL.String()
	require.Contains(t, sql, "category_id IN (?,?)")
	require.Contains(t, sql, "LOWER(location) LIKE ?")
	require.Contains(t, sql, "lost_date >= ?")
	require.Contains(t, sql, "ORDER BY `lost_date` DESC,`name`")
	require.Contains(t, sql, "LIMIT")
	require.Contains(t, sql, "OFFSET")
	require.Contains(t, stmt.Vars, "%москва%")
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\%\_off\\`, escapeLike(`100%_off\`))
}

func TestLostItemCreateUnknownCategory(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `categories`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewLostItemService(db).Create(context.Background(), ItemInput{CategoryID: 42, Name: "wallet"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "category not found", err.Error())
}

func TestItemCreateValidation(t *testing.T) {
	db, _ := newMockDB(t)
	_, err := NewFoundItemService(db).Create(context.Background(), ItemInput{Name: "keys"})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = NewFoundItemService(db).Create(context.Background(), ItemInput{CategoryID: 1, Name: " "})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestHasTag(t *testing.T) {
	tags := []storage.Tag{{ID: 1}, {ID: 3}}
	require.True(t, hasTag(tags, 3))
	require.False(t, hasTag(tags, 2))
}

var itemDay = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// itemTables 描述某类物品的表、日期列与标签关联表。
type itemTables struct {
	table, dateCol, join, fk string
}

var (
	lostTables  = itemTables{"lost_items", "lost_date", "lostitem_tag", "lost_item_id"}
	foundTables = itemTables{"found_items", "found_date", "founditem_tag", "found_item_id"}
)

// expectItem 期望一次带 Category 与 Tags 预加载的单条读取。
func expectItem(mock sqlmock.Sqlmock, tb itemTables, id, categoryID uint64, tagIDs ...uint64) {
	mock.ExpectQuery("SELECT (.+) FROM `" + tb.table + "` WHERE").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "description", tb.dateCol, "location", "category_id"}).
			AddRow(id, "Wallet", "brown leather", itemDay, "City Park", categoryID))
	mock.ExpectQuery("SELECT (.+) FROM `categories`").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "description"}).AddRow(categoryID, "Accessories", ""))
	links := sqlmock.NewRows([]string{tb.fk, "tag_id"})
	tags := sqlmock.NewRows([]string{"id", "name"})
	for _, tid := range tagIDs {
		links.AddRow(id, tid)
		tags.AddRow(tid, "tag")
	}
	mock.ExpectQuery("SELECT (.+) FROM `" + tb.join + "`").WillReturnRows(links)
	if len(tagIDs) > 0 {
		mock.ExpectQuery("SELECT (.+) FROM `tags` WHERE (.+) ORDER BY tags.id").WillReturnRows(tags)
	}
}

func expectTag(mock sqlmock.Sqlmock, id uint64) {
	mock.ExpectQuery("SELECT (.+) FROM `tags` WHERE").WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(id, "tag"))
}

func TestLostItemUpdatePatchesAndRechecksCategory(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, lostTables, 1, 2)
	mock.ExpectQuery("SELECT (.+) FROM `categories`").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `lost_items` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectItem(mock, lostTables, 1, 3)

	cat, name := uint64(3), " Wallet "
	it, err := NewLostItemService(db).Update(context.Background(), 1, ItemPatch{CategoryID: &cat, Name: &name})
	require.NoError(t, err)
	require.Equal(t, uint64(3), it.CategoryID)
	require.Equal(t, uint64(3), it.Category.ID)
}

func TestItemUpdateUnknownCategoryWritesNothing(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, foundTables, 10, 2)
	mock.ExpectQuery("SELECT (.+) FROM `categories`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cat := uint64(99)
	_, err := NewFoundItemService(db).Update(context.Background(), 10, ItemPatch{CategoryID: &cat})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "category not found", err.Error())
}

func TestItemUpdateRejectsBlankName(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, lostTables, 1, 2)

	blank := "  "
	_, err := NewLostItemService(db).Update(context.Background(), 1, ItemPatch{Name: &blank})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestItemUpdateEmptyPatchSkipsWrite(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, foundTables, 10, 2)
	expectItem(mock, foundTables, 10, 2)

	it, err := NewFoundItemService(db).Update(context.Background(), 10, ItemPatch{})
	require.NoError(t, err)
	require.Equal(t, uint64(10), it.ID)
}

func TestLostItemDeleteClearsTagLinksInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, lostTables, 1, 2, 5)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `lostitem_tag`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `lost_items`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewLostItemService(db).Delete(context.Background(), 1))
}

func TestFoundItemDeleteRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, foundTables, 10, 2)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `founditem_tag`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `found_items`").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	require.Error(t, NewFoundItemService(db).Delete(context.Background(), 10))
}

func TestItemDeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `found_items` WHERE").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := NewFoundItemService(db).Delete(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "found item not found", err.Error())
}

func TestFoundItemAttachTagAlreadyLinkedIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, foundTables, 10, 2, 5)
	expectTag(mock, 5)

	it, err := NewFoundItemService(db).AttachTag(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, it.Tags, 1)
	require.Equal(t, uint64(5), it.Tags[0].ID)
}

func TestFoundItemAttachTagInsertsLink(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, foundTables, 10, 2)
	expectTag(mock, 5)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `tags`").WillReturnResult(sqlmock.NewResult(5, 0))
	mock.ExpectExec("INSERT INTO `founditem_tag`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectItem(mock, foundTables, 10, 2, 5)

	it, err := NewFoundItemService(db).AttachTag(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, it.Tags, 1)
}

func TestAttachUnknownTag(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, lostTables, 1, 2)
	mock.ExpectQuery("SELECT (.+) FROM `tags` WHERE").WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := NewLostItemService(db).AttachTag(context.Background(), 1, 77)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "tag not found", err.Error())
}

func TestDetachTagNotLinkedIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, lostTables, 1, 2)
	expectTag(mock, 5)

	require.NoError(t, NewLostItemService(db).DetachTag(context.Background(), 1, 5))
}

func TestDetachTagUnknownTag(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, foundTables, 10, 2, 5)
	mock.ExpectQuery("SELECT (.+) FROM `tags` WHERE").WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	err := NewFoundItemService(db).DetachTag(context.Background(), 10, 8)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDetachTagDeletesLink(t *testing.T) {
	db, mock := newMockDB(t)
	expectItem(mock, lostTables, 1, 2, 5)
	expectTag(mock, 5)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `lostitem_tag`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewLostItemService(db).DetachTag(context.Background(), 1, 5))
}

func TestFoundItemListAllPreloadsInIDOrder(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `found_items` ORDER BY id$").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "description", "found_date", "location", "category_id"}).
			AddRow(10, "Samsung Galaxy", "", itemDay, "Central Station", 1).
			AddRow(11, "Black umbrella", "", itemDay, "Bus 42", 2))
	mock.ExpectQuery("SELECT (.+) FROM `categories` WHERE").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "description"}).AddRow(1, "Electronics", "").AddRow(2, "Accessories", ""))
	mock.ExpectQuery("SELECT (.+) FROM `founditem_tag` WHERE").WillReturnRows(
		sqlmock.NewRows([]string{"found_item_id", "tag_id"}).AddRow(10, 5))
	mock.ExpectQuery("SELECT (.+) FROM `tags` WHERE (.+) ORDER BY tags.id").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).AddRow(5, "phone"))

	items, err := NewFoundItemService(db).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, uint64(10), items[0].ID)
	require.Equal(t, "Electronics", items[0].Category.Name)
	require.Equal(t, []string{"phone"}, TagNames(items[0].Tags))
	require.Equal(t, "Accessories", items[1].Category.Name)
	require.Empty(t, items[1].Tags)
}
