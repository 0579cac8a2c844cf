package models

import "strings"

// Subjects a tutor profile may advertise. The catalog is fixed; any
// value outside it is rejected on write and dropped on read.
const (
	SubjectMath            = "math"
	SubjectScience         = "science"
	SubjectHolyQuran       = "holy_quran"
	SubjectPhysics         = "physics"
	SubjectChemistry       = "chemistry"
	SubjectBiology         = "biology"
	SubjectComputerScience = "computer_science"
	SubjectEnglish         = "english"
	SubjectAllScience      = "all_science_subjects"
	SubjectArts            = "art_subjects"
)

type Subject struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

var SubjectCatalog = []Subject{
	{Key: SubjectMath, DisplayName: "Maths"},
	{Key: SubjectScience, DisplayName: "Science"},
	{Key: SubjectHolyQuran, DisplayName: "Quran"},
	{Key: SubjectPhysics, DisplayName: "Physics"},
	{Key: SubjectChemistry, DisplayName: "Chemistry"},
	{Key: SubjectBiology, DisplayName: "Biology"},
	{Key: SubjectComputerScience, DisplayName: "Computer Science"},
	{Key: SubjectEnglish, DisplayName: "English"},
	{Key: SubjectAllScience, DisplayName: "All Science Subjects"},
	{Key: SubjectArts, DisplayName: "Arts"},
}

var subjectKeys = buildSubjectKeySet()

func buildSubjectKeySet() map[string]struct{} {
	keys := make(map[string]struct{}, len(SubjectCatalog))
	for _, subject := range SubjectCatalog {
		keys[subject.Key] = struct{}{}
	}
	return keys
}

func IsKnownSubject(key string) bool {
	_, ok := subjectKeys[NormalizeSubjectKey(key)]
	return ok
}

func NormalizeSubjectKey(key string) string {
	key = strings.TrimSpace(strings.ToLower(key))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

// FilterKnownSubjects validates a subject list read from storage,
// dropping anything outside the catalog and normalizing the rest.
func FilterKnownSubjects(keys []string) []string {
	filtered := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		normalized := NormalizeSubjectKey(key)
		if _, ok := subjectKeys[normalized]; !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		filtered = append(filtered, normalized)
	}
	return filtered
}
