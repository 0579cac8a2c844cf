package services

import (
	"context"
	"sort"

	"github.com/zain100000/ETutor/internal/models"
)

type TutorLister interface {
	ListAll(ctx context.Context) ([]models.TutorProfile, error)
}

type TutorSearchService struct {
	tutorRepo TutorLister
}

func NewTutorSearchService(tutorRepo TutorLister) *TutorSearchService {
	return &TutorSearchService{tutorRepo: tutorRepo}
}

// SearchPreferences is what a student asks for: the subjects they
// want taught and, optionally, the most they will pay per month.
type SearchPreferences struct {
	Subjects []string
	MaxFee   float64
}

// GetRankedTutors scores every tutor against the preferences and
// returns the best matches first.
func (s *TutorSearchService) GetRankedTutors(
	ctx context.Context,
	prefs SearchPreferences,
	limit int,
) ([]models.TutorWithScore, error) {
	tutors, err := s.tutorRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.TutorWithScore, 0, len(tutors))
	for _, tutor := range tutors {
		ranked = append(ranked, models.TutorWithScore{
			TutorProfile: tutor,
			MatchScore:   calculateMatchScore(prefs, &tutor),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MatchScore == ranked[j].MatchScore {
			return floatValue(ranked[i].Rating) > floatValue(ranked[j].Rating)
		}
		return ranked[i].MatchScore > ranked[j].MatchScore
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked, nil
}

func calculateMatchScore(prefs SearchPreferences, tutor *models.TutorProfile) int {
	score := 0
	wantedTags := subjectAliases(prefs.Subjects)
	taught := normalizeValues(tutor.Subjects)

	for _, aliases := range wantedTags {
		for _, alias := range aliases {
			if _, ok := taught[alias]; ok {
				score += 40
				break
			}
		}
	}

	if floatValue(tutor.Rating) > 4.0 {
		score += 20
	}
	if intValue(tutor.TeachingExperience) > 3 {
		score += 15
	}
	if prefs.MaxFee > 0 && floatValue(tutor.TuitionFee) > 0 && floatValue(tutor.TuitionFee) <= prefs.MaxFee {
		score += 15
	}

	return score
}

// subjectAliases widens each requested subject to the catalog keys
// that satisfy it. A tutor advertising the all-science bundle counts
// for any single science subject.
func subjectAliases(subjects []string) map[string][]string {
	mapped := make(map[string][]string, len(subjects))
	for _, subject := range subjects {
		switch key := models.NormalizeSubjectKey(subject); key {
		case "maths", models.SubjectMath:
			mapped[models.SubjectMath] = []string{models.SubjectMath}
		case "quran", models.SubjectHolyQuran:
			mapped[models.SubjectHolyQuran] = []string{models.SubjectHolyQuran}
		case "cs", models.SubjectComputerScience:
			mapped[models.SubjectComputerScience] = []string{models.SubjectComputerScience}
		case "arts", models.SubjectArts:
			mapped[models.SubjectArts] = []string{models.SubjectArts}
		case models.SubjectScience, models.SubjectPhysics, models.SubjectChemistry, models.SubjectBiology:
			mapped[key] = []string{key, models.SubjectAllScience}
		default:
			if key != "" {
				mapped[key] = []string{key}
			}
		}
	}

	return mapped
}

func normalizeValues(values *[]string) map[string]struct{} {
	normalized := make(map[string]struct{})
	for _, value := range sliceValue(values) {
		if key := models.NormalizeSubjectKey(value); key != "" {
			normalized[key] = struct{}{}
		}
	}
	return normalized
}

func sliceValue(values *[]string) []string {
	if values == nil {
		return nil
	}
	return *values
}

func floatValue(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func intValue(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
