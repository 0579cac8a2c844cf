package handlers

import (
	"strings"

	"github.com/zain100000/ETutor/internal/models"
)

func validateStudentProfileUpdateRequest(req updateStudentProfileRequest) string {
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		return "full_name must not be empty"
	}
	if req.Phone != nil && strings.TrimSpace(*req.Phone) == "" {
		return "phone must not be empty"
	}
	return ""
}

func validateCreateTutorProfileRequest(req createTutorProfileRequest) string {
	if strings.TrimSpace(req.FullName) == "" {
		return "full_name is required"
	}
	if len(req.Subjects) == 0 {
		return "subjects must contain at least one item"
	}
	if err := validateSubjects(req.Subjects); err != "" {
		return err
	}
	if req.TuitionFee <= 0 {
		return "tuition_fee must be greater than 0"
	}
	if req.TeachingExperience != nil && *req.TeachingExperience < 0 {
		return "teaching_experience must be 0 or greater"
	}
	return ""
}

func validateUpdateTutorProfileRequest(req updateTutorProfileRequest) string {
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		return "full_name must not be empty"
	}
	if req.Subjects != nil {
		if len(*req.Subjects) == 0 {
			return "subjects must contain at least one item"
		}
		if err := validateSubjects(*req.Subjects); err != "" {
			return err
		}
	}
	if req.TuitionFee != nil && *req.TuitionFee <= 0 {
		return "tuition_fee must be greater than 0"
	}
	if req.TeachingExperience != nil && *req.TeachingExperience < 0 {
		return "teaching_experience must be 0 or greater"
	}
	return ""
}

func validateSubjects(subjects []string) string {
	if len(models.FilterKnownSubjects(subjects)) == 0 {
		return "subjects must contain at least one known subject"
	}
	return ""
}
