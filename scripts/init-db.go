package main

import (
	"fmt"
	"log"
	"shop_concierge/internal/config"
	"shop_concierge/internal/database"
	"shop_concierge/internal/migrations"
	"shop_concierge/internal/models"
)

func main() {
	fmt.Println("Initializing database...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Force recreate all tables
	fmt.Println("Dropping existing tables...")
	err = db.Migrator().DropTable(
		&models.Expense{},
		&models.StatusLog{},
		&models.OrderItem{},
		&models.Order{},
		&models.Product{},
		&models.User{},
	)
	if err != nil {
		log.Printf("Warning: Error dropping tables: %v", err)
	}

	// Create tables with proper schema
	fmt.Println("Creating tables...")
	if err := migrations.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Seed admin account and starter catalog
	fmt.Println("Seeding defaults...")
	if err := migrations.SeedDefaults(db, cfg); err != nil {
		log.Fatal("Failed to seed defaults:", err)
	}

	fmt.Println("Database initialized successfully!")
}
