package storage

const schema = `
-- A deck owns its words and study log; name is the deck identity.
CREATE TABLE IF NOT EXISTS decks (
    name TEXT PRIMARY KEY,
    native_lang TEXT NOT NULL,
    study_lang TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- Meanings are kept as a JSON array to preserve their order.
CREATE TABLE IF NOT EXISTS words (
    deck TEXT NOT NULL,
    term TEXT NOT NULL,
    meanings TEXT NOT NULL,
    example TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,

    PRIMARY KEY (deck, term),
    FOREIGN KEY (deck) REFERENCES decks(name) ON DELETE CASCADE
);

-- One row per word and direction. A NULL next_review was never scheduled.
CREATE TABLE IF NOT EXISTS word_stats (
    deck TEXT NOT NULL,
    term TEXT NOT NULL,
    direction TEXT NOT NULL,
    correct_cnt INTEGER NOT NULL DEFAULT 0,
    incorrect_cnt INTEGER NOT NULL DEFAULT 0,
    prob_mode TEXT NOT NULL DEFAULT 'objective',
    last_reviewed DATETIME,
    next_review DATETIME,

    PRIMARY KEY (deck, term, direction),
    FOREIGN KEY (deck, term) REFERENCES words(deck, term) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_word_stats_due ON word_stats (deck, direction, next_review);

-- studied_words and sessions are JSON arrays.
CREATE TABLE IF NOT EXISTS study_log (
    deck TEXT NOT NULL,
    date TEXT NOT NULL,
    correct_count INTEGER NOT NULL DEFAULT 0,
    incorrect_count INTEGER NOT NULL DEFAULT 0,
    study_minutes INTEGER NOT NULL DEFAULT 0,
    studied_words TEXT NOT NULL DEFAULT '[]',
    sessions TEXT NOT NULL DEFAULT '[]',

    PRIMARY KEY (deck, date),
    FOREIGN KEY (deck) REFERENCES decks(name) ON DELETE CASCADE
);

-- Word-list locations synced into a deck, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    deck TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME,

    FOREIGN KEY (deck) REFERENCES decks(name) ON DELETE CASCADE
);
`
