package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;size:36;not null" json:"business_id"`
	Username   string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Name       string    `gorm:"size:100" json:"name"`
	Email      string    `gorm:"size:100" json:"email"`
	Password   string    `gorm:"size:100;not null" json:"-"`
	Role       UserRole  `gorm:"type:enum('OWNER','ADMIN','BOOKKEEPER','VIEWER');default:VIEWER" json:"role"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	BusinessId string   `json:"business_id" binding:"required"`
	Username   string   `json:"username" binding:"required"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password" binding:"required,min=8"`
	Role       UserRole `json:"role" binding:"required"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	switch input.Role {
	case UserRoleOwner, UserRoleAdmin, UserRoleBookkeeper, UserRoleViewer:
	default:
		return nil, ErrValidation("invalid role")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		BusinessId: input.BusinessId,
		Username:   input.Username,
		Name:       input.Name,
		Email:      input.Email,
		Password:   string(hashed),
		Role:       input.Role,
		IsActive:   utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrConflict("username is taken")
		}
		return nil, err
	}
	return &user, nil
}

func userCacheKey(id int) string {
	return fmt.Sprintf("User:%d", id)
}

// GetUserById is on the hot auth path, so it reads through redis.
func GetUserById(ctx context.Context, id int) (*User, error) {
	var user User
	if found, err := config.GetRedisObject(userCacheKey(id), &user); err == nil && found {
		return &user, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	_ = config.SetRedisObject(userCacheKey(id), user, time.Hour)
	return &user, nil
}

type SignInInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignIn verifies credentials and mints a JWT carrying the user's business
// scope and role.
func SignIn(ctx context.Context, input *SignInInput) (string, *User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).
		Where("username = ?", input.Username).
		First(&user).Error
	if err != nil {
		return "", nil, ErrUnauthorized("invalid credentials")
	}
	if user.IsActive != nil && !*user.IsActive {
		return "", nil, ErrUnauthorized("account is disabled")
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return "", nil, ErrUnauthorized("invalid credentials")
	}

	token, err := utils.JwtGenerate(user.ID, user.BusinessId, string(user.Role))
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}
