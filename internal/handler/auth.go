package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"
	"github.com/sakif/civicfix/internal/apperror"
	"github.com/sakif/civicfix/internal/auth"
	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/service"
)

// AuthHandler manages signup, login, the authenticated profile endpoint,
// and — when an OAuth app is configured — GitHub sign-in.
type AuthHandler struct {
	auth        *service.AuthService
	github      *auth.GitHubProvider // nil when GitHub sign-in is not configured
	redirectURL string               // where the OAuth callback sends the app, "" → JSON response
	logger      *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	redirectURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:        authService,
		github:      github,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

// authResponse pairs the issued token with the account summary. Signup and
// login return the same shape so the app has one code path.
type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// HandleSignup registers a new account.
//
// HTTP: POST /auth/signup/ — JSON or multipart (file field "avatar").
// The civic profile (phone, optional location from the usual coordinate
// aliases, optional avatar) is created together with the account; a 201
// response carries a token usable immediately.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	in := service.SignupInput{
		Location: geo.ExtractCoords(body.fields),
		Avatar:   body.file("avatar"),
	}
	in.Username, _ = body.str("username")
	in.Email, _ = body.str("email")
	in.Password, _ = body.str("password")
	// Two generations of the app disagree on this field name.
	in.PasswordConfirm, _ = body.firstStr("password_confirm", "password2")
	in.PhoneNumber, _ = body.str("phone_number")

	result, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token: result.Token,
		User:  newUserResponse(r, result.User, result.Civic),
	})
}

// HandleLogin authenticates with a username or email plus password.
//
// HTTP: POST /auth/login/
// Every failure is the same generic 400 — the response never reveals
// whether the identifier or the password was wrong.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	identifier, _ := body.firstStr("identifier", "username", "email")
	password, _ := body.str("password")

	result, err := h.auth.Login(r.Context(), identifier, password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token: result.Token,
		User:  newUserResponse(r, result.User, result.Civic),
	})
}

// HandleMe returns the authenticated user's summary.
//
// HTTP: GET /auth/me/ (bearer token; RequireAuth runs first)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't depend on wiring.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, civic, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(r, user, civic))
}

// HandleGitHubLogin starts the OAuth flow: store a random CSRF state in a
// short-lived HttpOnly cookie and redirect the browser to GitHub.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow: verify the CSRF state,
// exchange the code for a GitHub profile, upsert the account, and hand the
// token back — via redirect when a frontend URL is configured, as JSON
// otherwise.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid OAuth state",
		})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization",
			slog.String("error", errParam),
		)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "authorization denied",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing OAuth code",
		})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "authentication failed",
		})
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github callback: login failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "authentication failed",
		})
		return
	}

	if h.redirectURL != "" {
		http.Redirect(w, r,
			h.redirectURL+"?token="+url.QueryEscape(result.Token),
			http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token: result.Token,
		User:  newUserResponse(r, result.User, result.Civic),
	})
}
