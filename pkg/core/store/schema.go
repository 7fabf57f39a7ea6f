package store

// Schema is the fixed five-table DDL spec.md §6 describes. A caller applies
// it once at startup (e.g. via a migration runner); this module treats it
// as given rather than owning migrations, matching spec.md §1's framing of
// "the relational store" as an external collaborator this core only
// exposes idempotent upsert/insert primitives against.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                           TEXT PRIMARY KEY,
	profile                      JSONB,
	target_market                TEXT,
	supply_chain                 TEXT,
	seller_type                  TEXT,
	min_price                    DOUBLE PRECISION,
	max_price                    DOUBLE PRECISION,
	debate_rounds                INT,
	enable_followup              BOOLEAN,
	enable_websearch             BOOLEAN,
	status                       TEXT,
	phase                        TEXT,
	current_debate_round         INT,
	synthesized_report           TEXT,
	evidence_pack                JSONB,
	memory_snapshot              JSONB,
	evidence_generated_at        TIMESTAMPTZ,
	memory_snapshot_generated_at TIMESTAMPTZ,
	error_message                TEXT,
	started_at                   TIMESTAMPTZ,
	completed_at                 TIMESTAMPTZ,
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_results (
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	agent_name   TEXT NOT NULL,
	status       TEXT,
	duration_ms  BIGINT,
	content      TEXT,
	thinking     TEXT,
	sources      JSONB,
	confidence   DOUBLE PRECISION,
	error_message TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	PRIMARY KEY (session_id, agent_name)
);

CREATE TABLE IF NOT EXISTS debate_exchanges (
	id                BIGSERIAL PRIMARY KEY,
	session_id        TEXT NOT NULL REFERENCES sessions(id),
	round_number      INT NOT NULL,
	debate_type       TEXT NOT NULL,
	challenger        TEXT NOT NULL,
	responder         TEXT NOT NULL,
	challenge_content TEXT,
	response_content  TEXT,
	followup_content  TEXT,
	revised           BOOLEAN,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workflow_events (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	event_type  TEXT NOT NULL,
	agent_name  TEXT,
	tool_name   TEXT,
	node_id     TEXT,
	payload     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tool_invocations (
	session_id              TEXT NOT NULL REFERENCES sessions(id),
	invocation_id           TEXT PRIMARY KEY,
	agent_name              TEXT,
	tool_name               TEXT,
	status                  TEXT,
	duration_ms             BIGINT,
	input                   JSONB,
	output                  JSONB,
	error_message           TEXT,
	context                 TEXT,
	model_name              TEXT,
	cache_hit               BOOLEAN,
	estimated_input_tokens  INT,
	estimated_output_tokens INT,
	estimated_cost_usd      DOUBLE PRECISION,
	started_at              TIMESTAMPTZ,
	finished_at             TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
