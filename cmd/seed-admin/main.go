// seed-admin bootstraps a business and its owner user so a fresh database
// can be signed into.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   SEED_BUSINESS_NAME="Demo Books" SEED_USERNAME=owner SEED_PASSWORD=... \
//   go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	businessName := envOr("SEED_BUSINESS_NAME", "Demo Books")
	username := envOr("SEED_USERNAME", "owner")
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_PASSWORD is required")
		os.Exit(1)
	}

	var biz models.Business
	err := db.WithContext(ctx).Where("name = ?", businessName).First(&biz).Error
	if err == gorm.ErrRecordNotFound {
		created, createErr := models.CreateBusiness(ctx, &models.NewBusiness{
			Name:     businessName,
			Email:    envOr("SEED_EMAIL", "owner@example.com"),
			Timezone: envOr("SEED_TIMEZONE", "UTC"),
		})
		if createErr != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", createErr)
			os.Exit(1)
		}
		biz = *created
		fmt.Printf("Created business %q (%s)\n", biz.Name, biz.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	}

	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		hashed, hashErr := utils.HashPassword(password)
		if hashErr != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", hashErr)
			os.Exit(1)
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
			"password":    string(hashed),
			"is_active":   utils.NewTrue(),
			"business_id": businessID,
			"role":        models.UserRoleOwner,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update owner user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated owner user %q\n", username)
		return
	}
	if err != gorm.ErrRecordNotFound {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}

	user, err := models.CreateUser(ctx, &models.NewUser{
		BusinessId: businessID,
		Username:   username,
		Name:       envOr("SEED_NAME", "Owner"),
		Email:      envOr("SEED_EMAIL", "owner@example.com"),
		Password:   password,
		Role:       models.UserRoleOwner,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create owner user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created owner user %q (id=%d)\n", user.Username, user.ID)
}
