package handlers

import (
	"github.com/zain100000/ETutor/internal/models"
	"github.com/zain100000/ETutor/internal/services"
)

const (
	defaultPageLimit = 10

	// maxPageLimit doubles as the conversation view's default page
	// size. It must equal the history cache's page shape, otherwise
	// cached first pages would never be served.
	maxPageLimit = services.HistoryCachePageLimit
)

func buildPaginationMeta(page, limit, total int) models.PaginationMeta {
	meta := models.PaginationMeta{Page: page, Limit: limit, Total: total}
	if total > 0 && limit > 0 {
		meta.TotalPages = (total + limit - 1) / limit
	}
	return meta
}
