// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/middleware"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

const (
	tokenTypeBearer      = "Bearer"
	defaultMaxUploadSize = 5 << 20
	avatarFormField      = "avatar"
)

type HandlerConfig struct {
	Service       *Service
	Validator     *validator.Validate
	Cookies       CookieConfig
	MaxUploadSize int64
}

// Handler exposes one principal kind under /auth/{users|admins}.
type Handler struct {
	service       *Service
	validator     *validator.Validate
	cookies       CookieConfig
	maxUploadSize int64
}

func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = core.NewValidator("")
	}

	maxUpload := cfg.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadSize
	}

	return &Handler{
		service:       cfg.Service,
		validator:     v,
		cookies:       cfg.Cookies,
		maxUploadSize: maxUpload,
	}
}

// RegisterRoutes mounts the flows. authenticator gates the session routes
// and sensitive wraps the credential-guessing surfaces with a tighter limit.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	sensitive func(http.Handler) http.Handler,
) {
	if sensitive == nil {
		sensitive = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/auth/"+h.service.Kind().Plural(), func(r chi.Router) {
		r.Get("/verify-email/{token}", h.VerifyEmail)
		r.Get("/access-token", h.RefreshAccessToken)

		if h.service.Kind() == principal.KindUser {
			r.Get("/username/{username}", h.UsernameAvailability)
		}

		r.Group(func(r chi.Router) {
			r.Use(sensitive)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/verify-email/resend", h.ResendVerification)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password/{token}", h.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.GetMe)
			r.Put("/me/avatar", h.UpdateAvatar)
			r.Delete("/me/avatar", h.DeleteAvatar)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput

	switch h.service.Kind() {
	case principal.KindUser:
		var req UserRegisterRequest
		if !h.decode(w, r, &req) {
			return
		}
		in = req.input()
	default:
		var req AdminRegisterRequest
		if !h.decode(w, r, &req) {
			return
		}
		in = req.input()
	}

	profile, err := h.service.Register(r.Context(), in)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.CreatedMessage(
		w,
		h.toResponse(profile),
		"registered successfully, check your email to verify your account",
	)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		core.BadRequest(w, "verification token is required")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKMessage(w, nil, "email verified successfully, you can now log in")
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKMessage(w, nil, "verification email sent")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	now := h.service.now()
	h.cookies.setAccess(w, res.AccessToken, now)
	h.cookies.setRefresh(w, res.RefreshToken, now)

	core.OKMessage(w, LoginResponse{
		Account:     h.toResponse(res.Profile),
		AccessToken: res.AccessToken.Token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   res.AccessToken.ExpiresAt,
	}, "logged in successfully")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), id); err != nil {
		core.JSONError(w, err)
		return
	}

	h.cookies.clear(w)
	core.OKMessage(w, nil, "logged out successfully")
}

func (h *Handler) RefreshAccessToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		token = c.Value
	}

	res, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	now := h.service.now()
	h.cookies.setAccess(w, res.AccessToken, now)
	if res.RefreshToken != nil {
		h.cookies.setRefresh(w, res.RefreshToken, now)
	}

	core.OKMessage(w, AccessTokenResponse{
		AccessToken: res.AccessToken.Token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   res.AccessToken.ExpiresAt,
	}, "access token refreshed")
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKMessage(w, nil, "password reset link sent to your email")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		core.BadRequest(w, "reset token is required")
		return
	}

	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), token, req.Password); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKMessage(w, nil, "password reset successfully")
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Me(r.Context(), id)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, h.toResponse(profile))
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.JSONError(w, core.NewAppError(
				core.ErrInvalidInput,
				"avatar is too large",
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
			))
			return
		}
		core.BadRequest(w, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile(avatarFormField)
	if err != nil {
		core.BadRequest(w, "avatar file is required")
		return
	}
	defer file.Close() //nolint:errcheck // read-only upload

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		core.BadRequest(w, "avatar file is empty")
		return
	}
	if !isImage(mimetype.Detect(head[:n]).String()) {
		core.BadRequest(w, "avatar must be an image")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		core.InternalServerError(w, err)
		return
	}

	profile, err := h.service.UpdateAvatar(r.Context(), id, file)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKMessage(w, h.toResponse(profile), "avatar updated")
}

func (h *Handler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.DeleteAvatar(r.Context(), id)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKMessage(w, h.toResponse(profile), "avatar deleted")
}

func (h *Handler) UsernameAvailability(w http.ResponseWriter, r *http.Request) {
	username, available, err := h.service.UsernameAvailable(
		r.Context(),
		chi.URLParam(r, "username"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	msg := "username is taken"
	if available {
		msg = "username is available"
	}

	core.OKMessage(w, UsernameAvailabilityResponse{
		Username:  username,
		Available: available,
	}, msg)
}

// currentID returns the authenticated principal's id, refusing principals
// of the other kind.
func (h *Handler) currentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		core.Unauthorized(w, "you are not logged in")
		return "", false
	}
	if p.Kind() != h.service.Kind() {
		core.Forbidden(w, "access denied for this account type")
		return "", false
	}
	return p.PrincipalID(), true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func (h *Handler) toResponse(p *Profile) any {
	if h.service.Kind() == principal.KindUser {
		return UserResponse{
			ID:         p.ID,
			FullName:   p.Name,
			Username:   p.Username,
			Email:      p.Email,
			Role:       p.Role,
			Phone:      p.Phone,
			Address:    p.Address,
			AvatarURL:  p.AvatarURL,
			IsVerified: p.IsVerified,
			CreatedAt:  p.CreatedAt,
		}
	}

	return AdminResponse{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Role:       p.Role,
		Phone:      p.Phone,
		Address:    p.Address,
		AvatarURL:  p.AvatarURL,
		IsVerified: p.IsVerified,
		CreatedAt:  p.CreatedAt,
	}
}

func isImage(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
