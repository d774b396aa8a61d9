package service

import (
	"errors"
	"testing"
)

func TestUserServiceSignupAndLogin(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewUserService(gdb)

	user, err := svc.Signup(" Esther@Example.com ", "secret123", "Esther")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Email != "esther@example.com" {
		t.Fatalf("expected normalised email, got %q", user.Email)
	}
	if user.Password == "secret123" {
		t.Fatalf("password must be hashed")
	}
	if user.Avatar != "lamb" || user.IsAdmin {
		t.Fatalf("unexpected defaults: avatar=%q admin=%v", user.Avatar, user.IsAdmin)
	}

	if _, err := svc.Signup("esther@example.com", "another1", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := svc.Signup("not-an-email", "secret123", ""); !errors.Is(err, ErrInvalidUserInput) {
		t.Fatalf("expected ErrInvalidUserInput for email, got %v", err)
	}
	if _, err := svc.Signup("short@example.com", "123", ""); !errors.Is(err, ErrInvalidUserInput) {
		t.Fatalf("expected ErrInvalidUserInput for password, got %v", err)
	}

	logged, err := svc.Login("ESTHER@example.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, logged.ID)
	}

	if _, err := svc.Login("esther@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login("nobody@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestUserServiceUpdateProfile(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewUserService(gdb)
	user := createTestUser(t, gdb, "deborah@example.com")

	if _, err := svc.UpdateProfile(user.ID, ProfileUpdate{}); !errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}

	lion := "lion"
	if _, err := svc.UpdateProfile(user.ID, ProfileUpdate{Avatar: &lion}); !errors.Is(err, ErrInvalidAvatar) {
		t.Fatalf("expected ErrInvalidAvatar, got %v", err)
	}

	name, dove := " Deborah ", "Dove"
	updated, err := svc.UpdateProfile(user.ID, ProfileUpdate{Name: &name, Avatar: &dove})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Deborah" || updated.Avatar != "dove" {
		t.Fatalf("unexpected profile: %q %q", updated.Name, updated.Avatar)
	}

	if _, err := svc.UpdateProfile(9999, ProfileUpdate{Name: &name}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserServiceEnsureAdmin(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewUserService(gdb)

	admin, err := svc.EnsureAdmin("admin@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("ensure admin failed: %v", err)
	}
	if !admin.IsAdmin {
		t.Fatalf("expected admin flag")
	}

	// 已存在的普通用户会被提升并重置密码
	createTestUser(t, gdb, "elder@example.com")
	promoted, err := svc.EnsureAdmin("elder@example.com", "new-password")
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if !promoted.IsAdmin {
		t.Fatalf("expected promoted user to be admin")
	}
	if _, err := svc.Login("elder@example.com", "new-password"); err != nil {
		t.Fatalf("login with reset password failed: %v", err)
	}

	again, err := svc.EnsureAdmin("admin@example.com", "admin-pass")
	if err != nil || again.ID != admin.ID {
		t.Fatalf("ensure admin should be idempotent: %v", err)
	}
}
