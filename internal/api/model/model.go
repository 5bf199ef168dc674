package model

import "time"

// Rendition is one stored thumbnail recorded by the worker
type Rendition struct {
	ID        int64     `db:"id"`
	Original  string    `db:"original"`
	Key       string    `db:"key"`
	Suffix    string    `db:"suffix"`
	Width     int       `db:"width"`
	Height    int       `db:"height"`
	Format    string    `db:"format"`
	WorkerID  string    `db:"worker_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
