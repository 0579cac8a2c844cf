package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zain100000/ETutor/internal/models"
	"github.com/zain100000/ETutor/internal/repository"
	"github.com/zain100000/ETutor/internal/services"
)

type tutorProfileRepository interface {
	Create(ctx context.Context, req repository.CreateTutorProfileInput) (*models.TutorProfile, error)
	GetByID(ctx context.Context, tutorID int64) (*models.TutorProfile, error)
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
	List(ctx context.Context, filter repository.TutorListFilter) ([]models.TutorProfile, int, error)
	DeleteByUserID(ctx context.Context, userID int64) (bool, error)
	UpsertRating(ctx context.Context, tutorID, raterID int64, value int) error
}

type tutorRanker interface {
	GetRankedTutors(ctx context.Context, prefs services.SearchPreferences, limit int) ([]models.TutorWithScore, error)
}

type TutorHandler struct {
	tutorRepo      tutorProfileRepository
	profileService *services.ProfileService
	searchService  tutorRanker
}

func NewTutorHandler(
	tutorRepo tutorProfileRepository,
	profileService *services.ProfileService,
	searchService tutorRanker,
) *TutorHandler {
	return &TutorHandler{
		tutorRepo:      tutorRepo,
		profileService: profileService,
		searchService:  searchService,
	}
}

type createTutorProfileRequest struct {
	FullName           string   `json:"full_name"`
	ProfileImage       *string  `json:"profile_image"`
	Bio                *string  `json:"bio"`
	Subjects           []string `json:"subjects"`
	BoardRegion        *string  `json:"board_region"`
	TuitionFee         float64  `json:"tuition_fee"`
	TeachingExperience *int     `json:"teaching_experience"`
}

type updateTutorProfileRequest struct {
	FullName           *string   `json:"full_name"`
	ProfileImage       *string   `json:"profile_image"`
	Bio                *string   `json:"bio"`
	Subjects           *[]string `json:"subjects"`
	BoardRegion        *string   `json:"board_region"`
	TuitionFee         *float64  `json:"tuition_fee"`
	TeachingExperience *int      `json:"teaching_experience"`
}

type rateTutorRequest struct {
	Rating int `json:"rating"`
}

func (h *TutorHandler) ListTutors(c *fiber.Ctx) error {
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	subject := models.NormalizeSubjectKey(c.Query("subject"))
	if subject != "" && !models.IsKnownSubject(subject) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown subject"})
	}

	maxFee, err := parseNonNegativeFloat(c.Query("max_fee"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_fee must be a valid non-negative number"})
	}
	experience, err := parseNonNegativeInt(c.Query("experience"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "experience must be a valid non-negative integer"})
	}

	tutors, total, err := h.tutorRepo.List(c.Context(), repository.TutorListFilter{
		Subject:       subject,
		Search:        strings.TrimSpace(c.Query("search")),
		MaxFee:        maxFee,
		MinExperience: experience,
		Offset:        (page - 1) * limit,
		Limit:         limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutors"})
	}

	response := make([]models.TutorListResponse, 0, len(tutors))
	for _, tutor := range tutors {
		response = append(response, buildTutorListResponse(tutor, 0))
	}

	return c.JSON(fiber.Map{
		"tutors":     response,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *TutorHandler) GetRecommendedTutors(c *fiber.Ctx) error {
	if _, err := parseUserID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	maxFee, err := parseNonNegativeFloat(c.Query("max_fee"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_fee must be a valid non-negative number"})
	}

	subjects := make([]string, 0)
	for _, subject := range strings.Split(c.Query("subjects"), ",") {
		if trimmed := strings.TrimSpace(subject); trimmed != "" {
			subjects = append(subjects, trimmed)
		}
	}

	ranked, err := h.searchService.GetRankedTutors(c.Context(), services.SearchPreferences{
		Subjects: subjects,
		MaxFee:   maxFee,
	}, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch recommended tutors"})
	}

	response := make([]models.TutorListResponse, 0, len(ranked))
	for _, tutor := range ranked {
		response = append(response, buildTutorListResponse(tutor.TutorProfile, tutor.MatchScore))
	}

	return c.JSON(fiber.Map{"tutors": response})
}

func (h *TutorHandler) GetTutorDetail(c *fiber.Ctx) error {
	tutorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tutorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}

	tutor, err := h.tutorRepo.GetByID(c.Context(), tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutor"})
	}

	return c.JSON(fiber.Map{"tutor": buildTutorDetailResponse(*tutor)})
}

func (h *TutorHandler) CreateTutorProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createTutorProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateCreateTutorProfileRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.tutorRepo.Create(c.Context(), repository.CreateTutorProfileInput{
		UserID:             userID,
		FullName:           strings.TrimSpace(req.FullName),
		ProfileImage:       req.ProfileImage,
		Bio:                req.Bio,
		Subjects:           models.FilterKnownSubjects(req.Subjects),
		BoardRegion:        req.BoardRegion,
		TuitionFee:         req.TuitionFee,
		TeachingExperience: req.TeachingExperience,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Tutor profile already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create tutor profile"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"tutor_profile": profile})
}

func (h *TutorHandler) GetMyTutorProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	profile, err := h.tutorRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutor profile"})
	}

	return c.JSON(fiber.Map{"tutor_profile": profile})
}

func (h *TutorHandler) UpdateTutorProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateTutorProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateUpdateTutorProfileRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profileService.UpdateTutorProfile(c.Context(), userID, repository.UpdateTutorProfileInput{
		FullName:           req.FullName,
		ProfileImage:       req.ProfileImage,
		Bio:                req.Bio,
		Subjects:           req.Subjects,
		BoardRegion:        req.BoardRegion,
		TuitionFee:         req.TuitionFee,
		TeachingExperience: req.TeachingExperience,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No known subjects in update"})
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update tutor profile"})
	}

	return c.JSON(fiber.Map{"tutor_profile": profile})
}

func (h *TutorHandler) DeleteTutorProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	deleted, err := h.tutorRepo.DeleteByUserID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete tutor profile"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor profile not found"})
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *TutorHandler) RateTutor(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	tutorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tutorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}

	var req rateTutorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Rating must be between 1 and 5"})
	}

	tutor, err := h.tutorRepo.GetByID(c.Context(), tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutor"})
	}
	if tutor.UserID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot rate your own profile"})
	}

	if err := h.tutorRepo.UpsertRating(c.Context(), tutorID, userID, req.Rating); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit rating"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"rated": true})
}

func buildTutorListResponse(tutor models.TutorProfile, matchScore int) models.TutorListResponse {
	response := models.TutorListResponse{
		ID:                 strconv.FormatInt(tutor.ID, 10),
		FullName:           stringValue(tutor.FullName),
		ProfileImage:       stringValue(tutor.ProfileImage),
		Subjects:           stringSliceValue(tutor.Subjects),
		BoardRegion:        stringValue(tutor.BoardRegion),
		TuitionFee:         floatValueResponse(tutor.TuitionFee),
		TeachingExperience: intValueResponse(tutor.TeachingExperience),
		Rating:             floatValueResponse(tutor.Rating),
		RatingCount:        tutor.RatingCount,
	}
	if matchScore > 0 {
		response.MatchScore = matchScore
	}
	return response
}

func buildTutorDetailResponse(tutor models.TutorProfile) models.TutorDetailResponse {
	return models.TutorDetailResponse{
		TutorListResponse: buildTutorListResponse(tutor, 0),
		Bio:               stringValue(tutor.Bio),
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseNonNegativeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errInvalidNumber
	}
	return value, nil
}

func parseNonNegativeFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, errInvalidNumber
	}
	return value, nil
}

var errInvalidNumber = errors.New("invalid number")

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringSliceValue(value *[]string) []string {
	if value == nil {
		return []string{}
	}
	return *value
}

func floatValueResponse(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func intValueResponse(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

var _ services.TutorLister = (*repository.TutorProfileRepository)(nil)
