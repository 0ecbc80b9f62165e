package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS commands (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    target_x    INTEGER NOT NULL DEFAULT 0,
    target_y    INTEGER NOT NULL DEFAULT 0,
    target_home BOOLEAN NOT NULL DEFAULT FALSE,
    source      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    edge        BOOLEAN NOT NULL DEFAULT FALSE,
    captured    BOOLEAN NOT NULL DEFAULT FALSE,
    filename    TEXT NOT NULL DEFAULT '',
    ticks       INTEGER NOT NULL DEFAULT 0,
    elapsed_ms  BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_commands_status ON commands(status);

CREATE TABLE IF NOT EXISTS captures (
    id          BIGSERIAL PRIMARY KEY,
    command_id  TEXT NOT NULL DEFAULT '',
    target_x    INTEGER NOT NULL DEFAULT 0,
    target_y    INTEGER NOT NULL DEFAULT 0,
    target_home BOOLEAN NOT NULL DEFAULT FALSE,
    filename    TEXT NOT NULL DEFAULT '',
    ok          BOOLEAN NOT NULL DEFAULT FALSE,
    error       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS patrol_steps (
    id          BIGSERIAL PRIMARY KEY,
    patrol_id   TEXT NOT NULL REFERENCES patrols(id),
    step_index  INTEGER NOT NULL,
    round       INTEGER NOT NULL,
    target_x    INTEGER NOT NULL DEFAULT 0,
    target_y    INTEGER NOT NULL DEFAULT 0,
    target_home BOOLEAN NOT NULL DEFAULT FALSE,
    command_id  TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_patrol_steps_patrol ON patrol_steps(patrol_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    last_login_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
