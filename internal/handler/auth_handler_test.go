package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "storefront/internal/errors"
	"storefront/internal/model"
)

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockAuthService)
		wantStatus int
		wantError  string
	}{
		{
			name: "created",
			body: `{"name":"Ada","email":"ada@example.com","password":"secret1"}`,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, "Ada", "ada@example.com", "secret1").
					Return(&model.User{ID: 3, Name: "Ada", Email: "ada@example.com", PasswordHash: "$2a$10$hash", Role: model.RoleUser}, "signed.jwt", nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			body:       `{"name":`,
			setupMock:  func(*MockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "missing password",
			body:       `{"name":"Ada","email":"ada@example.com"}`,
			setupMock:  func(*MockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "password is required",
		},
		{
			name: "email taken",
			body: `{"name":"Ada","email":"ada@example.com","password":"secret1"}`,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, "Ada", "ada@example.com", "secret1").Return(nil, "", apperrors.ErrEmailTaken)
			},
			wantStatus: http.StatusConflict,
			wantError:  "email already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			tt.setupMock(svc)

			rec, _ := serve(t, NewAuthHandler(svc).Register, testRequest{
				method: http.MethodPost,
				target: "/api/users/register",
				body:   tt.body,
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			} else {
				assert.Equal(t, "user registered successfully", body["message"])
				assert.Equal(t, "signed.jwt", body["token"])
				assert.NotContains(t, rec.Body.String(), "hash")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("Login", mock.Anything, "ada@example.com", "secret1").Return(&model.User{ID: 3}, "signed.jwt", nil)
	svc.On("Login", mock.Anything, "nobody@example.com", "secret1").Return(nil, "", apperrors.ErrInvalidEmail)
	svc.On("Login", mock.Anything, "ada@example.com", "wrong").Return(nil, "", apperrors.ErrIncorrectPassword)
	h := NewAuthHandler(svc)

	rec, _ := serve(t, h.Login, testRequest{method: http.MethodPost, target: "/api/users/login", body: `{"email":"ada@example.com","password":"secret1"}`})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed.jwt", decode(t, rec)["token"])

	rec, _ = serve(t, h.Login, testRequest{method: http.MethodPost, target: "/api/users/login", body: `{"email":"nobody@example.com","password":"secret1"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email", decode(t, rec)["error"])

	rec, _ = serve(t, h.Login, testRequest{method: http.MethodPost, target: "/api/users/login", body: `{"email":"ada@example.com","password":"wrong"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "incorrect password", decode(t, rec)["error"])
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("Logout", mock.Anything, customerClaims).Return(nil)

	rec, _ := serve(t, NewAuthHandler(svc).Logout, testRequest{
		method: http.MethodPost,
		target: "/api/users/logout",
		claims: customerClaims,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logged out successfully", decode(t, rec)["message"])
	svc.AssertExpectations(t)
}
