package repository

import (
	"context"

	"github.com/zain100000/ETutor/internal/models"
)

type StudentProfileRepository struct {
	db DBTX
}

func NewStudentProfileRepository(db DBTX) *StudentProfileRepository {
	return &StudentProfileRepository{db: db}
}

func (r *StudentProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `INSERT INTO student_profiles (user_id) VALUES ($1)`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *StudentProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	query := `
		SELECT id, user_id, full_name, profile_image, phone, created_at, updated_at
		FROM student_profiles
		WHERE user_id = $1
	`
	var profile models.StudentProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.ProfileImage,
		&profile.Phone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type UpdateStudentProfileInput struct {
	FullName     *string
	ProfileImage *string
	Phone        *string
}

func (r *StudentProfileRepository) UpdatePartial(ctx context.Context, userID int64, req UpdateStudentProfileInput) (*models.StudentProfile, error) {
	query := `
		UPDATE student_profiles
		SET full_name = COALESCE($1, full_name),
			profile_image = COALESCE($2, profile_image),
			phone = COALESCE($3, phone),
			updated_at = NOW()
		WHERE user_id = $4
		RETURNING id, user_id, full_name, profile_image, phone, created_at, updated_at
	`
	var profile models.StudentProfile
	err := r.db.QueryRow(ctx, query,
		req.FullName,
		req.ProfileImage,
		req.Phone,
		userID,
	).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.ProfileImage,
		&profile.Phone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
