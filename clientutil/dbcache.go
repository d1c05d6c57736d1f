package clientutil

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DBCache is a persistent httpcache.Cache backed by a single sqlite
// file, so repeated batch runs don't rescrape identical pages.
type DBCache struct {
	db *sql.DB
}

func NewDBCache(path string) (*DBCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	_, err = db.Exec(`create table if not exists http_cache (key text primary key, data blob not null)`)
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &DBCache{db: db}, nil
}

func (c *DBCache) Get(key string) ([]byte, bool) {
	var data []byte
	err := c.db.QueryRow(`select data from http_cache where key=?`, key).Scan(&data)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *DBCache) Set(key string, data []byte) {
	_, err := c.db.Exec(`insert into http_cache (key, data) values (?, ?) on conflict (key) do update set data=excluded.data`, key, data)
	if err != nil {
		slog.Error("write http cache", "err", err)
	}
}

func (c *DBCache) Delete(key string) {
	_, _ = c.db.Exec(`delete from http_cache where key=?`, key)
}

func (c *DBCache) Close() error {
	return c.db.Close()
}
