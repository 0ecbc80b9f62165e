package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS commands (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    target_x    INTEGER NOT NULL DEFAULT 0,
    target_y    INTEGER NOT NULL DEFAULT 0,
    target_home INTEGER NOT NULL DEFAULT 0,
    source      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    edge        INTEGER NOT NULL DEFAULT 0,
    captured    INTEGER NOT NULL DEFAULT 0,
    filename    TEXT NOT NULL DEFAULT '',
    ticks       INTEGER NOT NULL DEFAULT 0,
    elapsed_ms  INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    resolved_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_commands_status ON commands(status);

CREATE TABLE IF NOT EXISTS captures (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    command_id  TEXT NOT NULL DEFAULT '',
    target_x    INTEGER NOT NULL DEFAULT 0,
    target_y    INTEGER NOT NULL DEFAULT 0,
    target_home INTEGER NOT NULL DEFAULT 0,
    filename    TEXT NOT NULL DEFAULT '',
    ok          INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_captures_command ON captures(command_id);

CREATE TABLE IF NOT EXISTS patrols (
    id          TEXT PRIMARY KEY,
    rounds      INTEGER NOT NULL,
    planned     INTEGER NOT NULL,
    dispatched  INTEGER NOT NULL DEFAULT 0,
    succeeded   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'running',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    finished_at TEXT
);

CREATE TABLE IF NOT EXISTS patrol_steps (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    patrol_id   TEXT NOT NULL REFERENCES patrols(id),
    step_index  INTEGER NOT NULL,
    round       INTEGER NOT NULL,
    target_x    INTEGER NOT NULL DEFAULT 0,
    target_y    INTEGER NOT NULL DEFAULT 0,
    target_home INTEGER NOT NULL DEFAULT 0,
    command_id  TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_patrol_steps_patrol ON patrol_steps(patrol_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    last_login_at TEXT,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
