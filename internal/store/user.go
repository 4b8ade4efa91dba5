package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/hems/examhall/internal/model"
)

const userColumns = `id, username, display_name, password_hash, role, active, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Active, &created)
	u.CreatedAt = fromUnix(created)
	return u, err
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, display_name, password_hash, role, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.Username, u.DisplayName, u.PasswordHash, u.Role, u.Active, unix(time.Now()),
	).Scan(&id)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = NOT active WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateStudent attaches a student profile to an existing user.
func (s *Store) CreateStudent(ctx context.Context, st model.Student) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO students (user_id, full_name, email, department, year_of_study)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		st.UserID, st.FullName, st.Email, st.Department, st.YearOfStudy,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	slog.Info("created student", "id", id, "user_id", st.UserID)
	return id, nil
}

const studentColumns = `id, user_id, full_name, email, department, year_of_study`

func scanStudent(row interface{ Scan(...any) error }) (model.Student, error) {
	var st model.Student
	err := row.Scan(&st.ID, &st.UserID, &st.FullName, &st.Email, &st.Department, &st.YearOfStudy)
	return st, err
}

// GetStudent returns a student profile by its ID.
func (s *Store) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

// GetStudentByUserID returns the student profile of a user.
func (s *Store) GetStudentByUserID(ctx context.Context, userID int64) (*model.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

// ListStudents returns every student profile ordered by name.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY full_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
