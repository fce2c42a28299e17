package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mintelli/mintelli/internal/platform/httpx"
)

var validate = validator.New()

// Handler exchanges API keys for bearer tokens.
type Handler struct {
	logger     *slog.Logger
	tokens     *TokenManager
	apiKeyHash string
}

// NewHandler constructs the auth HTTP handler. apiKeyHash is a bcrypt hash
// of the provisioning API key; when empty, token issuance is disabled.
func NewHandler(logger *slog.Logger, tokens *TokenManager, apiKeyHash string) *Handler {
	return &Handler{
		logger:     logger,
		tokens:     tokens,
		apiKeyHash: apiKeyHash,
	}
}

type tokenRequestDTO struct {
	UserID string `json:"user_id" validate:"required,min=1,max=128"`
	APIKey string `json:"api_key" validate:"required"`
}

// MountRoutes registers the auth endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/token", h.handleIssueToken)
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if h.apiKeyHash == "" {
		httpx.Problem(w, http.StatusServiceUnavailable, "Token Issuance Disabled", "no API key is configured")
		return
	}
	var dto tokenRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !CheckAPIKey(h.apiKeyHash, dto.APIKey) {
		h.logger.Warn("token issuance rejected", "user_id", dto.UserID)
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	token, err := h.tokens.Generate(dto.UserID)
	if err != nil {
		h.logger.Error("generate token", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
	})
}
