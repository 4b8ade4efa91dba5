package store

// Timestamps are stored as UTC unix seconds in both dialects so range
// comparisons behave identically.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	full_name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	year_of_study INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	duration_minutes INTEGER NOT NULL,
	total_marks INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	results_published BOOLEAN NOT NULL DEFAULT FALSE,
	created_by INTEGER NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'multiple_choice',
	marks INTEGER NOT NULL DEFAULT 0,
	question_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS choices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS exam_passwords (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	secret_hash TEXT NOT NULL,
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_exam_passwords_unused
	ON exam_passwords (exam_id, student_id) WHERE is_used = FALSE;

CREATE TABLE IF NOT EXISTS exam_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	start_time INTEGER NOT NULL,
	end_time INTEGER,
	status TEXT NOT NULL DEFAULT 'in_progress',
	is_blocked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_exam_attempts_open
	ON exam_attempts (exam_id, student_id) WHERE status <> 'submitted';

CREATE TABLE IF NOT EXISTS exam_answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id INTEGER NOT NULL REFERENCES exam_attempts(id) ON DELETE CASCADE,
	question_id INTEGER NOT NULL REFERENCES questions(id),
	selected_choice_id INTEGER,
	is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at INTEGER NOT NULL,
	UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id INTEGER NOT NULL UNIQUE REFERENCES exam_attempts(id) ON DELETE CASCADE,
	total_score INTEGER NOT NULL DEFAULT 0,
	earned REAL NOT NULL DEFAULT 0,
	percentage REAL NOT NULL DEFAULT 0,
	grade TEXT NOT NULL,
	pass_status TEXT NOT NULL,
	published_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	ts INTEGER NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	device_info TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS ix_activity_logs_kind_ts ON activity_logs (kind, ts);
CREATE INDEX IF NOT EXISTS ix_activity_logs_user_kind ON activity_logs (user_id, kind, id);

CREATE TABLE IF NOT EXISTS exam_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	full_name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	year_of_study INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	duration_minutes INTEGER NOT NULL,
	total_marks INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	results_published BOOLEAN NOT NULL DEFAULT FALSE,
	created_by BIGINT NOT NULL REFERENCES users(id),
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'multiple_choice',
	marks INTEGER NOT NULL DEFAULT 0,
	question_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS choices (
	id BIGSERIAL PRIMARY KEY,
	question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS exam_passwords (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	secret_hash TEXT NOT NULL,
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at BIGINT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_exam_passwords_unused
	ON exam_passwords (exam_id, student_id) WHERE is_used = FALSE;

CREATE TABLE IF NOT EXISTS exam_attempts (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	start_time BIGINT NOT NULL,
	end_time BIGINT,
	status TEXT NOT NULL DEFAULT 'in_progress',
	is_blocked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_exam_attempts_open
	ON exam_attempts (exam_id, student_id) WHERE status <> 'submitted';

CREATE TABLE IF NOT EXISTS exam_answers (
	id BIGSERIAL PRIMARY KEY,
	attempt_id BIGINT NOT NULL REFERENCES exam_attempts(id) ON DELETE CASCADE,
	question_id BIGINT NOT NULL REFERENCES questions(id),
	selected_choice_id BIGINT,
	is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at BIGINT NOT NULL,
	UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS results (
	id BIGSERIAL PRIMARY KEY,
	attempt_id BIGINT NOT NULL UNIQUE REFERENCES exam_attempts(id) ON DELETE CASCADE,
	total_score INTEGER NOT NULL DEFAULT 0,
	earned DOUBLE PRECISION NOT NULL DEFAULT 0,
	percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade TEXT NOT NULL,
	pass_status TEXT NOT NULL,
	published_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_logs (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	ts BIGINT NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	device_info TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS ix_activity_logs_kind_ts ON activity_logs (kind, ts);
CREATE INDEX IF NOT EXISTS ix_activity_logs_user_kind ON activity_logs (user_id, kind, id);

CREATE TABLE IF NOT EXISTS exam_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
