package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/walklog/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists 邮箱已被注册
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials 邮箱或密码错误
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidUserInput 注册信息不完整
	ErrInvalidUserInput = errors.New("invalid user input")
	// ErrInvalidAvatar 头像不在可选范围内
	ErrInvalidAvatar = errors.New("invalid avatar")
	// ErrNothingToUpdate 未提供任何可更新字段
	ErrNothingToUpdate = errors.New("nothing to update")
)

const minPasswordLength = 6

// Avatars 是可选的头像标识
var Avatars = []string{"lamb", "bread", "dove"}

// UserService 负责注册、登录与个人资料
type UserService struct {
	db *gorm.DB
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// ProfileUpdate 使用指针区分未传与空值
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// Signup 创建普通用户，密码使用 bcrypt 存储
func (s *UserService) Signup(email, password, name string) (*db.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUserInput, minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{
		Email:    email,
		Password: string(hashed),
		Name:     strings.TrimSpace(name),
		Avatar:   Avatars[0],
	}
	if err := s.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login 校验邮箱与密码
func (s *UserService) Login(email, password string) (*db.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 根据主键获取用户
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (s *UserService) GetByEmail(email string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile 只更新显式传入的字段
func (s *UserService) UpdateProfile(id uint, input ProfileUpdate) (*db.User, error) {
	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Avatar != nil {
		avatar := strings.ToLower(strings.TrimSpace(*input.Avatar))
		if !validAvatar(avatar) {
			return nil, ErrInvalidAvatar
		}
		updates["avatar"] = avatar
	}
	if len(updates) == 0 {
		return nil, ErrNothingToUpdate
	}

	result := s.db.Model(&db.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.Get(id)
}

// EnsureAdmin 创建或提升管理员账号，已存在时重置密码
func (s *UserService) EnsureAdmin(email, password string) (*db.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUserInput, minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user db.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			user = db.User{Email: email, Password: string(hashed), Name: "Admin", Avatar: Avatars[0], IsAdmin: true}
			return tx.Create(&user).Error
		case findErr != nil:
			return findErr
		}
		user.Password = string(hashed)
		user.IsAdmin = true
		return tx.Model(&user).Updates(map[string]any{"password": user.Password, "is_admin": true}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	return &user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidUserInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidUserInput)
	}
	return email, nil
}

func validAvatar(avatar string) bool {
	for _, candidate := range Avatars {
		if avatar == candidate {
			return true
		}
	}
	return false
}
