// Package http exposes auth and user management over gin.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/Apurer/go-commerce-api-server/internal/domains/users/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/users/ports"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// Handler serves registration, login, and the admin user views.
type Handler struct {
	service   ports.Service
	validate  *validatorv10.Validate
	responder *sharederrors.ChainedResponder
}

func NewHandler(service ports.Service, validate *validatorv10.Validate) *Handler {
	return &Handler{
		service:   service,
		validate:  validate,
		responder: sharederrors.NewChainedResponder("", mapUserError),
	}
}

// RegisterPublic mounts the unauthenticated auth routes.
func (h *Handler) RegisterPublic(r gin.IRoutes) {
	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)
}

// RegisterAdmin mounts the user management routes.
func (h *Handler) RegisterAdmin(r gin.IRoutes) {
	r.GET("/users", h.list)
	r.DELETE("/users/:id", h.delete)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	user, err := h.service.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	user, token, err := h.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, User: toResponse(user)})
}

func (h *Handler) list(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	responses := make([]userResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, toResponse(user))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toResponse(user *domain.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Roles: user.Roles,
	}
}

func mapUserError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return sharederrors.NewNotFoundProblem("user", ""), true
	case errors.Is(err, ports.ErrEmailTaken):
		return sharederrors.ErrConflict.WithDetail("email is already registered"), true
	case errors.Is(err, ports.ErrInvalidCredentials):
		return sharederrors.ErrUnauthorized.WithDetail("invalid email or password"), true
	case errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrEmptyName):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
