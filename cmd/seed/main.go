package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
)

// 演示数据填充：向 lost_found 库写入若干分类、标签与失物/招领物品，已存在的同名分类与标签会被跳过。
// 用法：go run ./cmd/seed [-config path] [-dry-run] [-confirm]
func main() {
	cfgPath := flag.String("config", "", "path to config.yaml/config.json")
	dryRun := flag.Bool("dry-run", false, "do not write changes, just report")
	confirm := flag.Bool("confirm", false, "skip interactive confirmation prompt")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dsn := cfg.MySQL.DSN()
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		log.Fatalf("parse dsn: %v", err)
	}
	fmt.Printf("Target database %s at %s\n", parsed.DBName, parsed.Addr)

	if *dryRun {
		fmt.Printf("Dry run: %d categories, %d tags, %d lost items, %d found items would be inserted\n",
			len(categories), len(tags), len(lostItems), len(foundItems))
		for _, it := range lostItems {
			fmt.Printf(" - lost  %q (%s)\n", it.name, it.category)
		}
		for _, it := range foundItems {
			fmt.Printf(" - found %q (%s)\n", it.name, it.category)
		}
		return
	}

	if !*confirm {
		fmt.Print("\nAbout to insert demo data. Type 'yes' to continue: ")
		var response string
		fmt.Scanln(&response)
		if response != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	catIDs, err := ensureNamed(tx, "categories", categories)
	if err != nil {
		_ = tx.Rollback()
		log.Fatalf("categories: %v", err)
	}
	tagIDs, err := ensureNamed(tx, "tags", tags)
	if err != nil {
		_ = tx.Rollback()
		log.Fatalf("tags: %v", err)
	}
	n := 0
	for _, set := range []struct {
		table, date, join, fk string
		items                 []seedItem
	}{
		{"lost_items", "lost_date", "lostitem_tag", "lost_item_id", lostItems},
		{"found_items", "found_date", "founditem_tag", "found_item_id", foundItems},
	} {
		for _, it := range set.items {
			if err := insertItem(tx, set.table, set.date, set.join, set.fk, it, catIDs, tagIDs); err != nil {
				_ = tx.Rollback()
				log.Fatalf("insert %s %q: %v", set.table, it.name, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}
	fmt.Printf("seed complete: %d items inserted\n", n)
}

type seedItem struct {
	name, description, location, category string
	daysAgo                               int
	tags                                  []string
}

var categories = []string{"Electronics", "Accessories", "Documents", "Keys"}

var tags = []string{"phone", "black", "leather", "metal", "wallet"}

var lostItems = []seedItem{
	{"Black Samsung phone", "Samsung Galaxy S21 in a black case", "Central Station", "Electronics", 3, []string{"phone", "black"}},
	{"Brown leather wallet", "Contains ID card and a bus pass", "City Park", "Accessories", 5, []string{"leather", "wallet"}},
	{"House keys", "Three keys on a metal ring", "Main Street", "Keys", 1, []string{"metal"}},
}

var foundItems = []seedItem{
	{"Samsung Galaxy", "Black smartphone found on a bench", "Central Station", "Electronics", 2, []string{"phone", "black"}},
	{"iPhone 12", "White phone with a cracked screen", "Airport", "Electronics", 4, []string{"phone"}},
	{"Wallet", "Leather wallet without documents", "City Park", "Accessories", 4, []string{"leather", "wallet"}},
	{"Black umbrella", "Folding umbrella", "Bus 42", "Accessories", 6, []string{"black"}},
}

// ensureNamed 确保 name 唯一的表中存在给定名称，返回名称到 ID 的映射。
func ensureNamed(tx *sql.Tx, table string, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		var id int64
		err := tx.QueryRow("SELECT id FROM "+table+" WHERE name = ?", name).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.Exec("INSERT INTO "+table+" (name) VALUES (?)", name)
			if err != nil {
				return nil, err
			}
			if id, err = res.LastInsertId(); err != nil {
				return nil, err
			}
			fmt.Printf("inserted %s %q id=%d\n", strings.TrimSuffix(table, "s"), name, id)
		case err != nil:
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}

func insertItem(tx *sql.Tx, table, dateCol, join, fk string, it seedItem, catIDs, tagIDs map[string]int64) error {
	date := time.Now().AddDate(0, 0, -it.daysAgo)
	res, err := tx.Exec(
		fmt.Sprintf("INSERT INTO %s (name, description, %s, location, category_id) VALUES (?, ?, ?, ?, ?)", table, dateCol),
		it.name, it.description, date, it.location, catIDs[it.category])
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, t := range it.tags {
		if _, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (%s, tag_id) VALUES (?, ?)", join, fk), id, tagIDs[t]); err != nil {
			return err
		}
	}
	return nil
}
