package store

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    username     TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    bio          TEXT NOT NULL DEFAULT '',
    avatar_url   TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS follows (
    follower_id INTEGER NOT NULL REFERENCES users(id),
    followee_id INTEGER NOT NULL REFERENCES users(id),
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (follower_id, followee_id)
);

CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id, created_at);

CREATE TABLE IF NOT EXISTS categories (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    slug      TEXT NOT NULL UNIQUE,
    name      TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS lists (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id    INTEGER NOT NULL REFERENCES users(id),
    category_id INTEGER NOT NULL REFERENCES categories(id),
    title       TEXT NOT NULL,
    is_public   BOOLEAN NOT NULL DEFAULT 1,
    is_active   BOOLEAN NOT NULL DEFAULT 1,
    like_count  INTEGER NOT NULL DEFAULT 0,
    deleted_at  DATETIME,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lists_owner ON lists(owner_id);
CREATE INDEX IF NOT EXISTS idx_lists_category ON lists(category_id);

CREATE TABLE IF NOT EXISTS list_saves (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    list_id    INTEGER NOT NULL REFERENCES lists(id),
    user_id    INTEGER NOT NULL REFERENCES users(id),
    created_at DATETIME NOT NULL,
    UNIQUE(list_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_saves_list ON list_saves(list_id, created_at);
CREATE INDEX IF NOT EXISTS idx_saves_user ON list_saves(user_id);

CREATE TABLE IF NOT EXISTS list_likes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    list_id    INTEGER NOT NULL REFERENCES lists(id),
    user_id    INTEGER NOT NULL REFERENCES users(id),
    created_at DATETIME NOT NULL,
    UNIQUE(list_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_likes_list ON list_likes(list_id, created_at);

CREATE TABLE IF NOT EXISTS comments (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    list_id    INTEGER NOT NULL REFERENCES lists(id),
    user_id    INTEGER NOT NULL REFERENCES users(id),
    body       TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_user ON comments(user_id, created_at);

CREATE TABLE IF NOT EXISTS comment_votes (
    comment_id INTEGER NOT NULL REFERENCES comments(id),
    user_id    INTEGER NOT NULL REFERENCES users(id),
    helpful    BOOLEAN NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (comment_id, user_id)
);

CREATE TABLE IF NOT EXISTS suggestions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    list_id      INTEGER NOT NULL REFERENCES lists(id),
    suggester_id INTEGER NOT NULL REFERENCES users(id),
    status       TEXT NOT NULL DEFAULT 'pending',
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_suggestions_suggester ON suggestions(suggester_id, status);

CREATE TABLE IF NOT EXISTS creator_rankings (
    user_id              INTEGER PRIMARY KEY REFERENCES users(id),
    curator_score        REAL NOT NULL DEFAULT 0,
    influence_score      REAL NOT NULL DEFAULT 0,
    momentum_score       REAL NOT NULL DEFAULT 0,
    ranking_score        REAL NOT NULL DEFAULT 0,
    global_rank          INTEGER NOT NULL,
    previous_global_rank INTEGER NOT NULL DEFAULT 0,
    monthly_rank         INTEGER NOT NULL,
    monthly_period       TEXT NOT NULL,
    category_ranks       TEXT NOT NULL DEFAULT '{}',
    last_activity_at     DATETIME,
    computed_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rankings_global ON creator_rankings(global_rank);

CREATE TABLE IF NOT EXISTS achievements (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL,
    tier        TEXT NOT NULL,
    icon        TEXT NOT NULL DEFAULT '',
    is_secret   BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_achievements (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id        INTEGER NOT NULL REFERENCES users(id),
    achievement_id INTEGER NOT NULL REFERENCES achievements(id),
    unlocked_at    DATETIME NOT NULL,
    UNIQUE(user_id, achievement_id)
);

CREATE TABLE IF NOT EXISTS creator_spotlights (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id       INTEGER NOT NULL REFERENCES users(id),
    type          TEXT NOT NULL,
    category_slug TEXT NOT NULL DEFAULT '',
    start_date    DATETIME NOT NULL,
    end_date      DATETIME NOT NULL,
    note          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_spotlights_window ON creator_spotlights(start_date, end_date);
CREATE INDEX IF NOT EXISTS idx_spotlights_user ON creator_spotlights(user_id, end_date);

CREATE TABLE IF NOT EXISTS editor_picks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    guid         TEXT NOT NULL UNIQUE,
    username     TEXT NOT NULL,
    user_id      INTEGER NOT NULL REFERENCES users(id),
    note         TEXT NOT NULL DEFAULT '',
    link         TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'pending',
    published_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS featured_slots (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    list_id  INTEGER NOT NULL REFERENCES lists(id),
    start_at DATETIME NOT NULL,
    end_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_featured_start ON featured_slots(start_at);
`
