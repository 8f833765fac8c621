// Package domain holds the entities shared by the scoring passes and the
// storage layer.
package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by storage when an entity disappeared or never existed.
var ErrNotFound = errors.New("not found")

// Category is an active list category.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Slug string `json:"slug" db:"slug"`
	Name string `json:"name" db:"name"`
}

// ListSummary is the public view of a curated list.
type ListSummary struct {
	ID         int64     `json:"id" db:"id"`
	OwnerID    int64     `json:"owner_id" db:"owner_id"`
	CategoryID int64     `json:"category_id" db:"category_id"`
	Title      string    `json:"title" db:"title"`
	LikeCount  int       `json:"like_count" db:"like_count"`
	SaveCount  int       `json:"save_count" db:"save_count"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the public view of a creator.
type Profile struct {
	UserID      int64  `json:"user_id" db:"id"`
	Username    string `json:"username" db:"username"`
	DisplayName string `json:"display_name" db:"display_name"`
	Bio         string `json:"bio" db:"bio"`
	AvatarURL   string `json:"avatar_url" db:"avatar_url"`
	Followers   int    `json:"followers" db:"followers"`
	ListCount   int    `json:"list_count" db:"list_count"`
}
