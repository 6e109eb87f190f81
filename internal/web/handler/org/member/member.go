// Package member provides the JSON API for managing organization members:
// listing, role and permission changes, and removal. Every mutation is
// checked against the caller's rbac context and written to the audit log.
package member

import (
	"errors"

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
	// Path is the base path for the member management API.
	Path = handler.APIPath + "/organization/members"
)

// Service provides member management operations.
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
		auth.RequirePermission(authService, rbac.PermManageUsers),
		s.List,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, rbac.PermManageUsers),
		s.Update,
	)
	app.Delete(Path+"/:id",
		auth.RequirePermission(authService, rbac.PermRemoveUsers),
		s.Remove,
	)
}

// memberResponse is the JSON shape of a membership.
type memberResponse struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	RoleName    string   `json:"role_name"`
	Permissions []string `json:"permissions"`
	Status      string   `json:"status"`
}

func toMemberResponse(m models.OrganizationMember) memberResponse {
	return memberResponse{
		ID:          m.ID,
		UserID:      m.UserID,
		Email:       m.User.Email,
		Name:        m.User.Name,
		Role:        m.Role,
		RoleName:    rbac.GetRoleName(m.Role),
		Permissions: m.Permissions,
		Status:      m.Status,
	}
}

// List returns all members of the caller's organization.
func (s *Service) List(c *fiber.Ctx) error {
	ctx := auth.ContextFromLocals(c)

	var members []models.OrganizationMember

	err := s.db.Preload("User").
		Where("organization_id = ?", ctx.OrganizationID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		log.Error().Err(err).Str("organization_id", ctx.OrganizationID).Msg("failed to list members")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}

	return c.JSON(out)
}

// updateRequest is the JSON body for a member update. Omitted fields stay
// unchanged.
type updateRequest struct {
	Role        *string   `json:"role"`
	Permissions *[]string `json:"permissions"`
}

// Update changes a member's role and/or explicit permission overrides.
func (s *Service) Update(c *fiber.Ctx) error {
	ctx := auth.ContextFromLocals(c)

	target, err := s.loadMember(c, ctx)
	if err != nil {
		return err
	}

	in := new(updateRequest)
	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid request body")
	}

	if result := rbac.CanManageUser(*ctx, target.Role, target.OrganizationID); !result.Allowed {
		return c.Status(fiber.StatusForbidden).SendString("Forbidden: " + result.Reason)
	}

	details := map[string]any{}

	if in.Role != nil && *in.Role != target.Role {
		if status, msg := s.checkRoleChange(ctx, target, *in.Role); status != 0 {
			return c.Status(status).SendString(msg)
		}

		details["old_role"] = target.Role
		details["new_role"] = *in.Role
		target.Role = *in.Role
	}

	if in.Permissions != nil {
		if msg := s.checkOverrides(ctx, *in.Permissions); msg != "" {
			return c.Status(fiber.StatusForbidden).SendString(msg)
		}

		details["permissions"] = *in.Permissions
		target.Permissions = *in.Permissions
	}

	if len(details) == 0 {
		return c.JSON(toMemberResponse(*target))
	}

	err = s.db.Model(target).
		Select("role", "permissions").
		Updates(models.OrganizationMember{Role: target.Role, Permissions: target.Permissions}).Error
	if err != nil {
		log.Error().Err(err).Str("member_id", target.ID).Msg("failed to update member")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	s.writeAudit(ctx.OrganizationID, rbac.NewAuditLogData("member_updated", *ctx, target.UserID, details))

	log.Info().Str("member_id", target.ID).Str("performed_by", ctx.UserID).Msg("member updated")

	return c.JSON(toMemberResponse(*target))
}

// Remove deletes a membership from the organization.
func (s *Service) Remove(c *fiber.Ctx) error {
	ctx := auth.ContextFromLocals(c)

	target, err := s.loadMember(c, ctx)
	if err != nil {
		return err
	}

	if result := rbac.CanManageUser(*ctx, target.Role, target.OrganizationID); !result.Allowed {
		return c.Status(fiber.StatusForbidden).SendString("Forbidden: " + result.Reason)
	}

	if target.Role == rbac.RoleOwner {
		last, err := s.isLastOwner(target)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
		}

		if last {
			return c.Status(fiber.StatusConflict).SendString("Cannot remove the last owner of an organization")
		}
	}

	if err := s.db.Delete(target).Error; err != nil {
		log.Error().Err(err).Str("member_id", target.ID).Msg("failed to remove member")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	s.writeAudit(ctx.OrganizationID, rbac.NewAuditLogData("member_removed", *ctx, target.UserID, map[string]any{
		"removed_role": target.Role,
	}))

	log.Info().Str("member_id", target.ID).Str("performed_by", ctx.UserID).Msg("member removed")

	return c.SendStatus(fiber.StatusNoContent)
}

// loadMember fetches the target membership inside the caller's organization.
// A non-nil error is already a completed fiber response.
func (s *Service) loadMember(c *fiber.Ctx, ctx *rbac.Context) (*models.OrganizationMember, error) {
	var target models.OrganizationMember

	err := s.db.Preload("User").
		Where("id = ? AND organization_id = ?", c.Params("id"), ctx.OrganizationID).
		First(&target).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, c.Status(fiber.StatusNotFound).SendString("Member not found")
	}

	if err != nil {
		log.Error().Err(err).Str("member_id", c.Params("id")).Msg("failed to load member")
		return nil, c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	return &target, nil
}

// checkRoleChange validates a role transition. Returns a status and message
// when the change must be refused, or 0 when it may proceed.
func (s *Service) checkRoleChange(ctx *rbac.Context, target *models.OrganizationMember, newRole string) (int, string) {
	if !rbac.IsValidRole(newRole) {
		return fiber.StatusBadRequest, "Unknown role: " + newRole
	}

	if !rbac.Can(*ctx, rbac.PermChangeUserRole) {
		return fiber.StatusForbidden, "Forbidden: User does not have permission: " + string(rbac.PermChangeUserRole)
	}

	if !rbac.CanManageRole(ctx.Role, newRole) {
		return fiber.StatusForbidden, "Forbidden: Cannot assign a role above your own"
	}

	// demoting the last owner would leave the organization unmanageable
	if target.Role == rbac.RoleOwner && newRole != rbac.RoleOwner {
		last, err := s.isLastOwner(target)
		if err != nil {
			return fiber.StatusInternalServerError, "Internal Server Error"
		}

		if last {
			return fiber.StatusConflict, "Cannot demote the last owner of an organization"
		}
	}

	return 0, ""
}

// checkOverrides refuses overrides the caller could not grant themselves.
func (s *Service) checkOverrides(ctx *rbac.Context, overrides []string) string {
	grantable := map[string]bool{}
	for _, perm := range rbac.GetGrantablePermissions(*ctx) {
		grantable[string(perm)] = true
	}

	for _, perm := range overrides {
		if !grantable[perm] {
			return "Forbidden: Cannot grant permission: " + perm
		}
	}

	return ""
}

// isLastOwner reports whether the target is the only active owner of its
// organization.
func (s *Service) isLastOwner(target *models.OrganizationMember) (bool, error) {
	var count int64

	err := s.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND role = ? AND status = ? AND id <> ?",
			target.OrganizationID, rbac.RoleOwner, models.MemberStatusActive, target.ID).
		Count(&count).Error
	if err != nil {
		log.Error().Err(err).Str("organization_id", target.OrganizationID).Msg("failed to count owners")
		return false, err
	}

	return count == 0, nil
}

// writeAudit persists an audit entry. Audit failures are logged but never
// fail the request.
func (s *Service) writeAudit(organizationID string, data rbac.AuditLogData) {
	row := models.AuditLog{
		OrganizationID: organizationID,
		Action:         data.Action,
		ResourceType:   data.ResourceType,
		ResourceID:     data.ResourceID,
		PerformedBy:    data.PerformedBy,
		Details:        data.Details,
	}

	if err := s.db.Create(&row).Error; err != nil {
		log.Error().Err(err).Str("action", data.Action).Msg("failed to write audit log")
	}
}
