package models

import "time"

type TutorProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	FullName           *string   `json:"full_name"`
	ProfileImage       *string   `json:"profile_image"`
	Bio                *string   `json:"bio"`
	Subjects           *[]string `json:"subjects"`
	BoardRegion        *string   `json:"board_region"`
	TuitionFee         *float64  `json:"tuition_fee"`
	TeachingExperience *int      `json:"teaching_experience"`
	Rating             *float64  `json:"rating"`
	RatingCount        int       `json:"rating_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TutorWithScore struct {
	TutorProfile
	MatchScore int `json:"match_score"`
}

type TutorListResponse struct {
	ID                 string   `json:"id"`
	FullName           string   `json:"full_name"`
	ProfileImage       string   `json:"profile_image"`
	Subjects           []string `json:"subjects"`
	BoardRegion        string   `json:"board_region"`
	TuitionFee         float64  `json:"tuition_fee"`
	TeachingExperience int      `json:"teaching_experience"`
	Rating             float64  `json:"rating"`
	RatingCount        int      `json:"rating_count"`
	MatchScore         int      `json:"match_score,omitempty"`
}

type TutorDetailResponse struct {
	TutorListResponse
	Bio string `json:"bio"`
}
