package sqlite

const schema = `
-- Stories pulled from the tracker, one row per tracker key
CREATE TABLE IF NOT EXISTS user_stories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    jira_key TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(jira_key)
);

CREATE INDEX IF NOT EXISTS idx_user_stories_created_at ON user_stories(created_at);

-- Generated test-case documents. The reference is not enforced:
-- deleting a story leaves its documents in place.
CREATE TABLE IF NOT EXISTS test_cases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_story_id INTEGER NOT NULL,
    content TEXT NOT NULL,
    generated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_story_id) REFERENCES user_stories(id)
);

CREATE INDEX IF NOT EXISTS idx_test_cases_story ON test_cases(user_story_id, generated_at);

-- One row per completed fetch cycle (append-only)
CREATE TABLE IF NOT EXISTS sync_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL DEFAULT '',
    stories_found INTEGER NOT NULL DEFAULT 0,
    completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TRIGGER IF NOT EXISTS sync_log_no_update
BEFORE UPDATE ON sync_log
BEGIN
    SELECT RAISE(ABORT, 'sync_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS sync_log_no_delete
BEFORE DELETE ON sync_log
BEGIN
    SELECT RAISE(ABORT, 'sync_log is append-only');
END;
`
