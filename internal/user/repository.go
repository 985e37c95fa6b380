package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, fullName, email, passwordHash string) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	u := User{
		ID:           id.String(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		ProfilePhoto: DefaultProfilePhoto,
		Bio:          DefaultBio,
		Followers:    []string{},
		Following:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, password_hash, profile_photo, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, u.ID, u.FullName, u.Email, u.PasswordHash, u.ProfilePhoto, u.Bio, now)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `
		SELECT id, full_name, email, password_hash, profile_photo, bio, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
}

func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, `
		SELECT id, full_name, email, password_hash, profile_photo, bio, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *Repository) findOne(ctx context.Context, query string, arg string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePhoto, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	if u.Followers, err = r.followerIDs(ctx, u.ID); err != nil {
		return User{}, err
	}
	if u.Following, err = r.followingIDs(ctx, u.ID); err != nil {
		return User{}, err
	}

	return u, nil
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, full_name, email, profile_photo, bio, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u := User{Followers: []string{}, Following: []string{}}
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.ProfilePhoto, &u.Bio, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, input ProfileInput) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET full_name = $2, bio = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, full_name, email, password_hash, profile_photo, bio, created_at, updated_at
	`, id, input.FullName, input.Bio, time.Now().UTC()).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePhoto, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}

	if u.Followers, err = r.followerIDs(ctx, u.ID); err != nil {
		return User{}, err
	}
	if u.Following, err = r.followingIDs(ctx, u.ID); err != nil {
		return User{}, err
	}

	return u, nil
}

func (r *Repository) UpdateAvatar(ctx context.Context, id, photoURL string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET profile_photo = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, full_name, email, password_hash, profile_photo, bio, created_at, updated_at
	`, id, photoURL, time.Now().UTC()).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePhoto, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("update avatar: %w", err)
	}

	if u.Followers, err = r.followerIDs(ctx, u.ID); err != nil {
		return User{}, err
	}
	if u.Following, err = r.followingIDs(ctx, u.ID); err != nil {
		return User{}, err
	}

	return u, nil
}

// ToggleFollow flips the directed edge actor→target. Both mirror rows are
// written inside one transaction, the target's followers row always first,
// so readers never observe the edge on only one side. A failure on the second
// write surfaces as ErrPartialFollowUpdate and rolls the first back.
func (r *Repository) ToggleFollow(ctx context.Context, actorID, targetID string) (FollowChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return FollowChange{}, fmt.Errorf("begin follow toggle tx: %w", err)
	}
	defer tx.Rollback()

	var present bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_followers
			WHERE user_id = $1 AND follower_id = $2
		)
	`, targetID, actorID).Scan(&present)
	if err != nil {
		return FollowChange{}, fmt.Errorf("check follow edge: %w", err)
	}

	now := time.Now().UTC()
	if !present {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_followers (user_id, follower_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, targetID, actorID, now)
		if err != nil {
			return FollowChange{}, fmt.Errorf("insert follower edge: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_following (user_id, followee_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, actorID, targetID, now)
		if err != nil {
			return FollowChange{}, fmt.Errorf("insert following edge (%v): %w", err, ErrPartialFollowUpdate)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM user_followers
			WHERE user_id = $1 AND follower_id = $2
		`, targetID, actorID)
		if err != nil {
			return FollowChange{}, fmt.Errorf("delete follower edge: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM user_following
			WHERE user_id = $1 AND followee_id = $2
		`, actorID, targetID)
		if err != nil {
			return FollowChange{}, fmt.Errorf("delete following edge (%v): %w", err, ErrPartialFollowUpdate)
		}
	}

	targetFollowers, err := collectIDs(tx.QueryContext(ctx, `
		SELECT follower_id FROM user_followers WHERE user_id = $1 ORDER BY created_at ASC
	`, targetID))
	if err != nil {
		return FollowChange{}, fmt.Errorf("read target followers: %w", err)
	}

	actorFollowing, err := collectIDs(tx.QueryContext(ctx, `
		SELECT followee_id FROM user_following WHERE user_id = $1 ORDER BY created_at ASC
	`, actorID))
	if err != nil {
		return FollowChange{}, fmt.Errorf("read actor following: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return FollowChange{}, fmt.Errorf("commit follow toggle tx: %w", err)
	}

	return FollowChange{
		ActorID:         actorID,
		TargetID:        targetID,
		Following:       !present,
		ActorFollowing:  actorFollowing,
		TargetFollowers: targetFollowers,
	}, nil
}

// ReconcileFollows repairs edges that exist on only one side. The followers
// table is written first and therefore authoritative: missing following
// mirrors are added, following rows with no follower counterpart removed.
func (r *Repository) ReconcileFollows(ctx context.Context) (added, removed int64, err error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_following (user_id, followee_id, created_at)
		SELECT f.follower_id, f.user_id, f.created_at
		FROM user_followers f
		WHERE NOT EXISTS (
			SELECT 1 FROM user_following g
			WHERE g.user_id = f.follower_id AND g.followee_id = f.user_id
		)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("repair missing following mirrors: %w", err)
	}
	if added, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("repaired mirrors rows affected: %w", err)
	}

	res, err = r.db.ExecContext(ctx, `
		DELETE FROM user_following g
		WHERE NOT EXISTS (
			SELECT 1 FROM user_followers f
			WHERE f.user_id = g.followee_id AND f.follower_id = g.user_id
		)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("remove orphan following rows: %w", err)
	}
	if removed, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("orphan rows affected: %w", err)
	}

	return added, removed, nil
}

func (r *Repository) followerIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := collectIDs(r.db.QueryContext(ctx, `
		SELECT follower_id FROM user_followers WHERE user_id = $1 ORDER BY created_at ASC
	`, userID))
	if err != nil {
		return nil, fmt.Errorf("query followers: %w", err)
	}
	return ids, nil
}

func (r *Repository) followingIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := collectIDs(r.db.QueryContext(ctx, `
		SELECT followee_id FROM user_following WHERE user_id = $1 ORDER BY created_at ASC
	`, userID))
	if err != nil {
		return nil, fmt.Errorf("query following: %w", err)
	}
	return ids, nil
}

func collectIDs(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
