package storage

const schema = `
-- The 'cards' table holds one word/translation pair per row, owned by a user.
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    word TEXT NOT NULL,
    translation TEXT NOT NULL,
    example TEXT NOT NULL DEFAULT '',
    comment TEXT NOT NULL DEFAULT '',
    level TEXT NOT NULL DEFAULT 'beginner',
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_owner ON cards(owner_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_owner_word_translation
    ON cards(owner_id, word, translation);

-- The 'schedules' table holds the SM-2 state, exactly one row per card.
-- A row is created in the same transaction as its card; only an explicit
-- administrative deletion can remove it while the card survives.
CREATE TABLE IF NOT EXISTS schedules (
    card_id INTEGER PRIMARY KEY,
    next_review DATETIME NOT NULL,
    interval_days INTEGER NOT NULL DEFAULT 1,
    repetition INTEGER NOT NULL DEFAULT 0,
    ef REAL NOT NULL DEFAULT 2.5,
    last_result BOOLEAN,
    updated_at DATETIME NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_schedules_next_review ON schedules(next_review);
`
