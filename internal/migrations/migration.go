package migrations

import (
	"log"
	"shop_concierge/internal/config"
	"shop_concierge/internal/models"
	"shop_concierge/internal/repository"
	"shop_concierge/internal/services"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.StatusLog{},
		&models.Expense{},
	)
}

// SeedDefaults creates the admin account and a starter catalog on a
// fresh database. Safe to call again; existing data is left alone.
func SeedDefaults(db *gorm.DB, cfg *config.Config) error {
	userRepo := repository.NewUserRepository(db)
	userService := services.NewUserService(userRepo)

	count, err := userRepo.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		log.Println("Creating seed admin account...")
		if _, err := userService.CreateAdmin(cfg.AdminEmail, "Administrator", cfg.AdminPassword); err != nil {
			return err
		}
	}

	var productCount int64
	if err := db.Model(&models.Product{}).Count(&productCount).Error; err != nil {
		return err
	}
	if productCount == 0 {
		log.Println("Creating starter catalog...")
		products := []models.Product{
			{Name: "Maize flour 2kg", UnitPrice: decimal.NewFromInt(185), Unit: "bale", IsActive: true},
			{Name: "Cooking oil 1L", UnitPrice: decimal.NewFromInt(320), Unit: "bottle", IsActive: true},
			{Name: "Fresh milk 500ml", UnitPrice: decimal.NewFromInt(60), Unit: "packet", IsActive: true},
			{Name: "Bread 400g", UnitPrice: decimal.NewFromInt(65), Unit: "loaf", IsActive: true},
		}
		if err := db.Create(&products).Error; err != nil {
			return err
		}
	}

	return nil
}
