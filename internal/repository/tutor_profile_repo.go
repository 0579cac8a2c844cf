package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/zain100000/ETutor/internal/models"
)

type TutorProfileRepository struct {
	db DBTX
}

func NewTutorProfileRepository(db DBTX) *TutorProfileRepository {
	return &TutorProfileRepository{db: db}
}

const tutorProfileColumns = `
	tp.id, tp.user_id, tp.full_name, tp.profile_image, tp.bio, tp.subjects,
	tp.board_region, tp.tuition_fee, tp.teaching_experience,
	r.avg_rating, COALESCE(r.rating_count, 0),
	tp.created_at, tp.updated_at
`

const tutorRatingJoin = `
	LEFT JOIN LATERAL (
		SELECT AVG(value)::float8 AS avg_rating, COUNT(*) AS rating_count
		FROM tutor_ratings
		WHERE tutor_id = tp.id
	) r ON TRUE
`

func scanTutorProfile(row pgx.Row) (*models.TutorProfile, error) {
	var profile models.TutorProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.ProfileImage,
		&profile.Bio,
		&profile.Subjects,
		&profile.BoardRegion,
		&profile.TuitionFee,
		&profile.TeachingExperience,
		&profile.Rating,
		&profile.RatingCount,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if profile.Subjects != nil {
		filtered := models.FilterKnownSubjects(*profile.Subjects)
		profile.Subjects = &filtered
	}
	return &profile, nil
}

type CreateTutorProfileInput struct {
	UserID             int64
	FullName           string
	ProfileImage       *string
	Bio                *string
	Subjects           []string
	BoardRegion        *string
	TuitionFee         float64
	TeachingExperience *int
}

func (r *TutorProfileRepository) Create(ctx context.Context, req CreateTutorProfileInput) (*models.TutorProfile, error) {
	query := `
		WITH inserted AS (
			INSERT INTO tutor_profiles
				(user_id, full_name, profile_image, bio, subjects, board_region,
				 tuition_fee, teaching_experience)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		)
		SELECT ` + tutorProfileColumns + `
		FROM inserted tp
		` + tutorRatingJoin
	return scanTutorProfile(r.db.QueryRow(ctx, query,
		req.UserID,
		req.FullName,
		req.ProfileImage,
		req.Bio,
		req.Subjects,
		req.BoardRegion,
		req.TuitionFee,
		req.TeachingExperience,
	))
}

func (r *TutorProfileRepository) GetByID(ctx context.Context, tutorID int64) (*models.TutorProfile, error) {
	query := `
		SELECT ` + tutorProfileColumns + `
		FROM tutor_profiles tp
		` + tutorRatingJoin + `
		WHERE tp.id = $1
	`
	return scanTutorProfile(r.db.QueryRow(ctx, query, tutorID))
}

func (r *TutorProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error) {
	query := `
		SELECT ` + tutorProfileColumns + `
		FROM tutor_profiles tp
		` + tutorRatingJoin + `
		WHERE tp.user_id = $1
	`
	return scanTutorProfile(r.db.QueryRow(ctx, query, userID))
}

type TutorListFilter struct {
	Subject       string
	Search        string
	MaxFee        float64
	MinExperience int
	Offset        int
	Limit         int
}

func (r *TutorProfileRepository) List(ctx context.Context, filter TutorListFilter) ([]models.TutorProfile, int, error) {
	where := `
		WHERE ($1 = '' OR tp.subjects @> ARRAY[$1]::text[])
		  AND ($2 = '' OR tp.full_name ILIKE '%' || $2 || '%')
		  AND ($3 = 0 OR tp.tuition_fee <= $3)
		  AND ($4 = 0 OR tp.teaching_experience >= $4)
	`

	var total int
	countQuery := `SELECT COUNT(*) FROM tutor_profiles tp ` + where
	if err := r.db.QueryRow(ctx, countQuery,
		filter.Subject, filter.Search, filter.MaxFee, filter.MinExperience,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + tutorProfileColumns + `
		FROM tutor_profiles tp
		` + tutorRatingJoin + where + `
		ORDER BY r.avg_rating DESC NULLS LAST, tp.id ASC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.db.Query(ctx, query,
		filter.Subject, filter.Search, filter.MaxFee, filter.MinExperience,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles, err := collectTutorProfiles(rows)
	if err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

func (r *TutorProfileRepository) ListAll(ctx context.Context) ([]models.TutorProfile, error) {
	query := `
		SELECT ` + tutorProfileColumns + `
		FROM tutor_profiles tp
		` + tutorRatingJoin + `
		ORDER BY tp.id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTutorProfiles(rows)
}

type UpdateTutorProfileInput struct {
	FullName           *string
	ProfileImage       *string
	Bio                *string
	Subjects           *[]string
	BoardRegion        *string
	TuitionFee         *float64
	TeachingExperience *int
}

func (r *TutorProfileRepository) UpdatePartial(ctx context.Context, userID int64, req UpdateTutorProfileInput) (*models.TutorProfile, error) {
	query := `
		WITH updated AS (
			UPDATE tutor_profiles
			SET full_name = COALESCE($1, full_name),
				profile_image = COALESCE($2, profile_image),
				bio = COALESCE($3, bio),
				subjects = COALESCE($4, subjects),
				board_region = COALESCE($5, board_region),
				tuition_fee = COALESCE($6, tuition_fee),
				teaching_experience = COALESCE($7, teaching_experience),
				updated_at = NOW()
			WHERE user_id = $8
			RETURNING *
		)
		SELECT ` + tutorProfileColumns + `
		FROM updated tp
		` + tutorRatingJoin
	return scanTutorProfile(r.db.QueryRow(ctx, query,
		req.FullName,
		req.ProfileImage,
		req.Bio,
		req.Subjects,
		req.BoardRegion,
		req.TuitionFee,
		req.TeachingExperience,
		userID,
	))
}

func (r *TutorProfileRepository) DeleteByUserID(ctx context.Context, userID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tutor_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertRating records one rating per rater per tutor; rating again
// replaces the previous value.
func (r *TutorProfileRepository) UpsertRating(ctx context.Context, tutorID, raterID int64, value int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tutor_ratings (tutor_id, rater_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (tutor_id, rater_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, tutorID, raterID, value)
	return err
}

func collectTutorProfiles(rows pgx.Rows) ([]models.TutorProfile, error) {
	profiles := make([]models.TutorProfile, 0)
	for rows.Next() {
		profile, err := scanTutorProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}
