package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/envelope"
	"github.com/signalix/vault/internal/middleware"
	"github.com/signalix/vault/internal/validate"
)

// AuthHandler handles registration, login and logout
type AuthHandler struct {
	authService   *auth.AuthService
	dispatcher    *envelope.Dispatcher
	otpInResponse bool
}

// NewAuthHandler creates a new auth handler. otpInResponse returns issued codes in the
// /login-otp body; disable it wherever a real delivery channel exists.
func NewAuthHandler(authService *auth.AuthService, dispatcher *envelope.Dispatcher, otpInResponse bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		dispatcher:    dispatcher,
		otpInResponse: otpInResponse,
	}
}

type registerRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
	Password    string `json:"password"`
}

type registerResponse struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type loginOTPResponse struct {
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type loginPasswordRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// loginResponse is returned by both OTP verification and password login.
type loginResponse struct {
	Message     string `json:"message"`
	SessionID   string `json:"sessionId"`
	AccessToken string `json:"accessToken"`
}

type meResponse struct {
	PhoneNumber string    `json:"phoneNumber"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HandleRegister handles POST /register (password mode)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := validate.Register.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), auth.RegisterInput{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Password:    req.Password,
	})
	if err != nil {
		slog.Info("registration failed", "phone", maskPhone(req.PhoneNumber), "error", err)
		respondWithError(w, r, err)
		return
	}

	slog.Info("user registered", "phone", maskPhone(user.PhoneNumber))
	h.dispatcher.Respond(w, r, http.StatusCreated, registerResponse{
		Message:     "user registered",
		PhoneNumber: user.PhoneNumber,
	})
}

// HandleRequestOTP handles POST /login-otp (session mode)
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req loginOTPRequest
	if err := validate.LoginOTP.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)

	code, err := h.authService.RequestOTP(r.Context(), envelope.SessionIDFrom(r.Context()), phone)
	if err != nil {
		slog.Info("failed to request OTP", "phone", maskPhone(phone), "error", err)
		respondWithError(w, r, err)
		return
	}

	resp := loginOTPResponse{Message: "otp sent"}
	if h.otpInResponse {
		resp.OTP = code
	}
	h.dispatcher.Respond(w, r, http.StatusOK, resp)
}

// HandleVerifyOTP handles POST /verify-otp (session mode)
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := validate.VerifyOTP.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	sessionID := envelope.SessionIDFrom(r.Context())

	token, err := h.authService.VerifyOTP(r.Context(), sessionID, phone, strings.TrimSpace(req.OTP))
	if err != nil {
		slog.Info("OTP verification failed", "phone", maskPhone(phone), "error", err)
		respondWithError(w, r, err)
		return
	}

	h.dispatcher.Respond(w, r, http.StatusOK, loginResponse{
		Message:     "otp verified",
		SessionID:   sessionID,
		AccessToken: token,
	})
}

// HandleLoginWithPassword handles POST /loginWithPassword (session mode)
func (h *AuthHandler) HandleLoginWithPassword(w http.ResponseWriter, r *http.Request) {
	var req loginPasswordRequest
	if err := validate.LoginPassword.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	sessionID := envelope.SessionIDFrom(r.Context())

	token, err := h.authService.LoginWithPassword(r.Context(), sessionID, phone, req.Password)
	if err != nil {
		slog.Info("password login failed", "phone", maskPhone(phone), "error", err)
		respondWithError(w, r, err)
		return
	}

	h.dispatcher.Respond(w, r, http.StatusOK, loginResponse{
		Message:     "login successful",
		SessionID:   sessionID,
		AccessToken: token,
	})
}

// HandleLogout handles POST /logout. It always succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(strings.TrimSpace(r.Header.Get(envelope.SessionHeader)))
	envelope.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		envelope.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	envelope.WriteJSON(w, http.StatusOK, meResponse{
		PhoneNumber: user.PhoneNumber,
		Name:        user.Name,
		CreatedAt:   user.CreatedAt,
	})
}
