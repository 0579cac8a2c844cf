package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zain100000/ETutor/internal/models"
	"github.com/zain100000/ETutor/internal/repository"
	"github.com/zain100000/ETutor/internal/services"
)

type stubTutorRepo struct {
	tutors     []models.TutorProfile
	total      int
	listFilter repository.TutorListFilter

	detailTutor   *models.TutorProfile
	detailTutorID int64
	detailErr     error

	created   *models.TutorProfile
	createErr error

	deleted   bool
	deleteErr error

	ratedTutorID int64
	ratedBy      int64
	ratedValue   int
	rateErr      error
}

func (s *stubTutorRepo) List(_ context.Context, filter repository.TutorListFilter) ([]models.TutorProfile, int, error) {
	s.listFilter = filter
	return s.tutors, s.total, nil
}

func (s *stubTutorRepo) GetByID(_ context.Context, tutorID int64) (*models.TutorProfile, error) {
	s.detailTutorID = tutorID
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.detailTutor, nil
}

func (s *stubTutorRepo) GetByUserID(_ context.Context, _ int64) (*models.TutorProfile, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.detailTutor, nil
}

func (s *stubTutorRepo) Create(_ context.Context, req repository.CreateTutorProfileInput) (*models.TutorProfile, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubTutorRepo) DeleteByUserID(_ context.Context, _ int64) (bool, error) {
	return s.deleted, s.deleteErr
}

func (s *stubTutorRepo) UpsertRating(_ context.Context, tutorID, raterID int64, value int) error {
	s.ratedTutorID = tutorID
	s.ratedBy = raterID
	s.ratedValue = value
	return s.rateErr
}

type stubTutorRanker struct {
	tutors []models.TutorWithScore
	prefs  services.SearchPreferences
	limit  int
}

func (s *stubTutorRanker) GetRankedTutors(_ context.Context, prefs services.SearchPreferences, limit int) ([]models.TutorWithScore, error) {
	s.prefs = prefs
	s.limit = limit
	return s.tutors, nil
}

func newTutorTestApp(repo *stubTutorRepo, ranker *stubTutorRanker) (*fiber.App, *TutorHandler) {
	handler := NewTutorHandler(repo, services.NewProfileService(nil, stubTutorUpdater{}), ranker)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		return c.Next()
	})
	return app, handler
}

// stubTutorUpdater satisfies the profile service's tutor updater;
// these handler tests never reach UpdatePartial.
type stubTutorUpdater struct{}

func (stubTutorUpdater) UpdatePartial(_ context.Context, _ int64, _ repository.UpdateTutorProfileInput) (*models.TutorProfile, error) {
	return nil, pgx.ErrNoRows
}

func buildStubTutor(id int64) models.TutorProfile {
	fullName := "Ms. Sana"
	subjects := []string{"math", "physics"}
	region := "federal_board"
	fee := 15000.0
	experience := 6
	rating := 4.7
	return models.TutorProfile{
		ID:                 id,
		UserID:             id + 100,
		FullName:           &fullName,
		Subjects:           &subjects,
		BoardRegion:        &region,
		TuitionFee:         &fee,
		TeachingExperience: &experience,
		Rating:             &rating,
		RatingCount:        12,
	}
}

func TestListTutorsReturnsPaginationAndFilters(t *testing.T) {
	repo := &stubTutorRepo{
		tutors: []models.TutorProfile{buildStubTutor(91)},
		total:  11,
	}
	app, handler := newTutorTestApp(repo, &stubTutorRanker{})
	app.Get("/api/v1/tutors", handler.ListTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors?subject=math&max_fee=20000&experience=3&page=2&limit=5", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Tutors     []models.TutorListResponse `json:"tutors"`
		Pagination models.PaginationMeta      `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if repo.listFilter.Subject != "math" || repo.listFilter.Offset != 5 || repo.listFilter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", repo.listFilter)
	}
	if repo.listFilter.MaxFee != 20000 || repo.listFilter.MinExperience != 3 {
		t.Fatalf("unexpected numeric filters: %+v", repo.listFilter)
	}
	if len(body.Tutors) != 1 || body.Tutors[0].ID != "91" {
		t.Fatalf("unexpected tutors response: %+v", body.Tutors)
	}
	if body.Tutors[0].RatingCount != 12 {
		t.Fatalf("expected rating_count 12, got %d", body.Tutors[0].RatingCount)
	}
	if body.Pagination.Total != 11 || body.Pagination.TotalPages != 3 || body.Pagination.Page != 2 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
}

func TestListTutorsRejectsUnknownSubject(t *testing.T) {
	app, handler := newTutorTestApp(&stubTutorRepo{}, &stubTutorRanker{})
	app.Get("/api/v1/tutors", handler.ListTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors?subject=alchemy", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetRecommendedTutorsReturnsMatchScores(t *testing.T) {
	ranker := &stubTutorRanker{
		tutors: []models.TutorWithScore{
			{TutorProfile: buildStubTutor(44), MatchScore: 85},
		},
	}
	app, handler := newTutorTestApp(&stubTutorRepo{}, ranker)
	app.Get("/api/v1/tutors/recommended", handler.GetRecommendedTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/recommended?subjects=math,physics&max_fee=20000&limit=3", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Tutors []models.TutorListResponse `json:"tutors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if ranker.limit != 3 || len(ranker.prefs.Subjects) != 2 || ranker.prefs.MaxFee != 20000 {
		t.Fatalf("unexpected forwarded preferences: limit=%d prefs=%+v", ranker.limit, ranker.prefs)
	}
	if len(body.Tutors) != 1 || body.Tutors[0].MatchScore != 85 {
		t.Fatalf("unexpected recommended tutors: %+v", body.Tutors)
	}
}

func TestGetTutorDetailReturnsProfile(t *testing.T) {
	tutor := buildStubTutor(55)
	bio := "Ten years teaching federal board physics"
	tutor.Bio = &bio
	repo := &stubTutorRepo{detailTutor: &tutor}
	app, handler := newTutorTestApp(repo, &stubTutorRanker{})
	app.Get("/api/v1/tutors/:id", handler.GetTutorDetail)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/55", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Tutor models.TutorDetailResponse `json:"tutor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if repo.detailTutorID != 55 {
		t.Fatalf("expected detail lookup for tutor 55, got %d", repo.detailTutorID)
	}
	if body.Tutor.ID != "55" || body.Tutor.Bio != bio {
		t.Fatalf("unexpected tutor detail: %+v", body.Tutor)
	}
}

func TestGetTutorDetailReturnsNotFound(t *testing.T) {
	app, handler := newTutorTestApp(&stubTutorRepo{detailErr: pgx.ErrNoRows}, &stubTutorRanker{})
	app.Get("/api/v1/tutors/:id", handler.GetTutorDetail)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/99", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateTutorProfileRejectsUnknownSubjects(t *testing.T) {
	app, handler := newTutorTestApp(&stubTutorRepo{}, &stubTutorRanker{})
	app.Post("/api/v1/tutors/profile", handler.CreateTutorProfile)

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/tutors/profile",
		strings.NewReader(`{"full_name":"Mr. Ali","subjects":["alchemy"],"tuition_fee":12000}`),
	)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateTutorProfileDuplicateReturnsConflict(t *testing.T) {
	repo := &stubTutorRepo{createErr: &pgconn.PgError{Code: "23505"}}
	app, handler := newTutorTestApp(repo, &stubTutorRanker{})
	app.Post("/api/v1/tutors/profile", handler.CreateTutorProfile)

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/tutors/profile",
		strings.NewReader(`{"full_name":"Mr. Ali","subjects":["math"],"tuition_fee":12000}`),
	)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestRateTutorUpsertsRating(t *testing.T) {
	tutor := buildStubTutor(7)
	repo := &stubTutorRepo{detailTutor: &tutor}
	app, handler := newTutorTestApp(repo, &stubTutorRanker{})
	app.Post("/api/v1/tutors/:id/rate", handler.RateTutor)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tutors/7/rate", strings.NewReader(`{"rating":5}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if repo.ratedTutorID != 7 || repo.ratedBy != 42 || repo.ratedValue != 5 {
		t.Fatalf("unexpected rating upsert: tutor=%d rater=%d value=%d", repo.ratedTutorID, repo.ratedBy, repo.ratedValue)
	}
}

func TestRateTutorRejectsOutOfRangeValue(t *testing.T) {
	app, handler := newTutorTestApp(&stubTutorRepo{}, &stubTutorRanker{})
	app.Post("/api/v1/tutors/:id/rate", handler.RateTutor)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tutors/7/rate", strings.NewReader(`{"rating":6}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRateTutorRejectsSelfRating(t *testing.T) {
	tutor := buildStubTutor(7)
	tutor.UserID = 42
	repo := &stubTutorRepo{detailTutor: &tutor}
	app, handler := newTutorTestApp(repo, &stubTutorRanker{})
	app.Post("/api/v1/tutors/:id/rate", handler.RateTutor)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tutors/7/rate", strings.NewReader(`{"rating":4}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDeleteTutorProfileReturnsNotFoundWhenMissing(t *testing.T) {
	app, handler := newTutorTestApp(&stubTutorRepo{deleted: false}, &stubTutorRanker{})
	app.Delete("/api/v1/tutors/profile", handler.DeleteTutorProfile)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tutors/profile", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
