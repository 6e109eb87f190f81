package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/auth"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/db/models"
	"github.com/AffiliateAggregator/AffiliateAggregator/internal/rbac"
)

const (
	seedAdminEmail    = "admin@example.com"
	seedAdminPassword = "changeme"
)

// seed creates a default organization with an owner account when the user
// table is empty, so a fresh installation can be signed into.
func seed(cfg *config.Config, db *gorm.DB) {
	var count int64

	db.Model(&models.User{}).Count(&count)
	if count != 0 {
		return
	}

	user, err := auth.NewLocalProvider(db).CreateUser(seedAdminEmail, "Administrator", seedAdminPassword)
	if err != nil {
		log.Error().Err(err).Msg("failed to seed admin user")
		return
	}

	org := models.Organization{
		Name: cfg.Title,
		Slug: "default",
	}

	if err := db.Create(&org).Error; err != nil {
		log.Error().Err(err).Msg("failed to seed default organization")
		return
	}

	if err := db.Create(&models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           rbac.RoleOwner,
		Status:         models.MemberStatusActive,
	}).Error; err != nil {
		log.Error().Err(err).Msg("failed to seed owner membership")
		return
	}

	log.Warn().
		Str("email", seedAdminEmail).
		Msg("seeded default owner account, change its password immediately")
}
