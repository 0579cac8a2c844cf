package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/zain100000/ETutor/internal/models"
	"github.com/zain100000/ETutor/internal/repository"
)

type SubjectHandler struct {
	tutorRepo tutorProfileRepository
}

func NewSubjectHandler(tutorRepo tutorProfileRepository) *SubjectHandler {
	return &SubjectHandler{tutorRepo: tutorRepo}
}

func (h *SubjectHandler) ListSubjects(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"subjects": models.SubjectCatalog})
}

func (h *SubjectHandler) ListTutorsBySubject(c *fiber.Ctx) error {
	subject := models.NormalizeSubjectKey(c.Params("key"))
	if !models.IsKnownSubject(subject) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown subject"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	tutors, total, err := h.tutorRepo.List(c.Context(), repository.TutorListFilter{
		Subject: subject,
		Offset:  (page - 1) * limit,
		Limit:   limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutors"})
	}

	response := make([]models.TutorListResponse, 0, len(tutors))
	for _, tutor := range tutors {
		response = append(response, buildTutorListResponse(tutor, 0))
	}

	return c.JSON(fiber.Map{
		"subject":    subject,
		"tutors":     response,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}
