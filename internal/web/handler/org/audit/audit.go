// Package audit exposes the organization's audit trail as a read only,
// paginated JSON API.
package audit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/auth"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/web/handler"
)

const (
	// Path is the path of the audit log API.
	Path = handler.APIPath + "/organization/audit-logs"

	defaultPerPage = 50
	maxPerPage     = 200
)

// Service provides the audit log API.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg

	app.Get(Path,
		auth.RequirePermission(authService, rbac.PermViewAuditLog),
		s.List,
	)
}

// entryResponse is the JSON shape of an audit entry.
type entryResponse struct {
	ID           uint64         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	PerformedBy  string         `json:"performed_by"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// listResponse is a page of audit entries.
type listResponse struct {
	Entries []entryResponse `json:"entries"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Total   int64           `json:"total"`
}

// List returns the organization's audit entries, newest first. Pagination is
// controlled with the page and per_page query parameters.
func (s *Service) List(c *fiber.Ctx) error {
	ctx := auth.ContextFromLocals(c)

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	perPage := c.QueryInt("per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}

	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	query := s.db.Model(&models.AuditLog{}).Where("organization_id = ?", ctx.OrganizationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error().Err(err).Str("organization_id", ctx.OrganizationID).Msg("failed to count audit entries")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	var rows []models.AuditLog

	err := query.Order("created_at DESC, id DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&rows).Error
	if err != nil {
		log.Error().Err(err).Str("organization_id", ctx.OrganizationID).Msg("failed to list audit entries")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	entries := make([]entryResponse, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryResponse{
			ID:           row.ID,
			Action:       row.Action,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			PerformedBy:  row.PerformedBy,
			Details:      row.Details,
			CreatedAt:    row.CreatedAt,
		})
	}

	return c.JSON(listResponse{
		Entries: entries,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}
