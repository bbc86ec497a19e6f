package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cbodonnell/pyramid/pkg/log"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

var _ AuthHandler = &FirebaseAuthHandler{}

// FirebaseAuthHandler implements AuthHandler using Firebase Auth REST API
type FirebaseAuthHandler struct {
	apiKey         string
	identityURL    string
	secureTokenURL string
	client         *http.Client
}

type NewFirebaseAuthHandlerOptions struct {
	APIKey string
	// IdentityToolkitURL and SecureTokenURL default to the Google endpoints.
	IdentityToolkitURL string
	SecureTokenURL     string
	Client             *http.Client
}

// NewFirebaseAuthHandler creates a new instance of FirebaseAuthHandler
func NewFirebaseAuthHandler(opts NewFirebaseAuthHandlerOptions) *FirebaseAuthHandler {
	h := &FirebaseAuthHandler{
		apiKey:         opts.APIKey,
		identityURL:    opts.IdentityToolkitURL,
		secureTokenURL: opts.SecureTokenURL,
		client:         opts.Client,
	}
	if h.identityURL == "" {
		h.identityURL = DefaultIdentityToolkitURL
	}
	if h.secureTokenURL == "" {
		h.secureTokenURL = DefaultSecureTokenURL
	}
	if h.client == nil {
		h.client = http.DefaultClient
	}
	return h
}

// ErrorResponseBody is the response body for an error
// https://firebase.google.com/docs/reference/rest/auth#section-error-format
type ErrorResponseBody struct {
	Error struct {
		Code    int                  `json:"code"`
		Message ErrorResponseMessage `json:"message"`
	} `json:"error"`
}

type ErrorResponseMessage string

const (
	ErrorEmailExists             ErrorResponseMessage = "EMAIL_EXISTS"
	ErrorOperationNotAllowed     ErrorResponseMessage = "OPERATION_NOT_ALLOWED"
	ErrorTooManyAttempts         ErrorResponseMessage = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ErrorInvalidEmail            ErrorResponseMessage = "INVALID_EMAIL"
	ErrorInvalidLoginCredentials ErrorResponseMessage = "INVALID_LOGIN_CREDENTIALS"
	ErrorTokenExpired            ErrorResponseMessage = "TOKEN_EXPIRED"
	ErrorInvalidRefreshToken     ErrorResponseMessage = "INVALID_REFRESH_TOKEN"
	ErrorWeakPassword            ErrorResponseMessage = "WEAK_PASSWORD : Password should be at least 6 characters"
)

// clientErrors are the upstream errors passed on to the player as a 400.
var clientErrors = map[ErrorResponseMessage]string{
	ErrorEmailExists:             "Email already exists",
	ErrorOperationNotAllowed:     "Operation not allowed",
	ErrorTooManyAttempts:         "Too many attempts, try again later",
	ErrorInvalidEmail:            "Invalid email",
	ErrorInvalidLoginCredentials: "Invalid credentials",
	ErrorTokenExpired:            "Token expired",
	ErrorInvalidRefreshToken:     "Invalid refresh token",
	ErrorWeakPassword:            "Password should be at least 6 characters",
}

// CredentialsRequestBody is the request body for the register and login endpoints
type CredentialsRequestBody struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// TokenResponseBody is the response body for the register and login endpoints
type TokenResponseBody struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

// RefreshRequestBody is the request body for the refresh endpoint
type RefreshRequestBody struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponseBody is the response body for the refresh endpoint
type RefreshResponseBody struct {
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// HandleRegister handles requests to the register endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-create-email-password
func (s *FirebaseAuthHandler) HandleRegister() func(w http.ResponseWriter, r *http.Request) {
	return s.handleCredentials(s.identityURL+"/accounts:signUp", "register")
}

// HandleLogin handles requests to the login endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-email-password
func (s *FirebaseAuthHandler) HandleLogin() func(w http.ResponseWriter, r *http.Request) {
	return s.handleCredentials(s.identityURL+"/accounts:signInWithPassword", "login")
}

func (s *FirebaseAuthHandler) handleCredentials(endpoint, action string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.FormValue("email")
		password := r.FormValue("password")

		if email == "" {
			http.Error(w, "Missing email", http.StatusBadRequest)
			return
		}
		if password == "" {
			http.Error(w, "Missing password", http.StatusBadRequest)
			return
		}

		requestPayload := &CredentialsRequestBody{
			Email:             email,
			Password:          password,
			ReturnSecureToken: true,
		}
		s.forward(w, r, endpoint, action, requestPayload, &TokenResponseBody{})
	}
}

// HandleRefresh handles requests to the refresh endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-refresh-token
func (s *FirebaseAuthHandler) HandleRefresh() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			http.Error(w, "Missing refresh token", http.StatusBadRequest)
			return
		}

		requestPayload := &RefreshRequestBody{
			GrantType:    "refresh_token",
			RefreshToken: refreshToken,
		}
		s.forward(w, r, s.secureTokenURL+"/token", "refresh", requestPayload, &RefreshResponseBody{})
	}
}

// forward posts requestPayload to endpoint and relays the decoded response
// into responsePayload.
func (s *FirebaseAuthHandler) forward(w http.ResponseWriter, r *http.Request, endpoint, action string, requestPayload, responsePayload interface{}) {
	body := bytes.NewBuffer(nil)
	if err := json.NewEncoder(body).Encode(requestPayload); err != nil {
		log.Error("error encoding request body: %v", err)
		http.Error(w, "error encoding request body", http.StatusInternalServerError)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, fmt.Sprintf("%s?key=%s", endpoint, s.apiKey), body)
	if err != nil {
		log.Error("error creating request: %v", err)
		http.Error(w, "error creating request", http.StatusInternalServerError)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Error("error sending request: %v", err)
		http.Error(w, "error sending request", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error("error response status: %s", resp.Status)
		errorResponse := &ErrorResponseBody{}
		if err := json.NewDecoder(resp.Body).Decode(errorResponse); err != nil {
			log.Error("failed to decode error response: %v", err)
			http.Error(w, "failed to decode error response", http.StatusInternalServerError)
			return
		}
		if msg, ok := clientErrors[errorResponse.Error.Message]; ok {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		log.Error("unhandled error response message: %s", errorResponse.Error.Message)
		http.Error(w, fmt.Sprintf("Failed to %s", action), http.StatusInternalServerError)
		return
	}

	if err := json.NewDecoder(resp.Body).Decode(responsePayload); err != nil {
		log.Error("error decoding response: %v", err)
		http.Error(w, "error decoding response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(responsePayload); err != nil {
		log.Error("error encoding response: %v", err)
	}
}
