package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/finman-app/finman-server/cmd/models"
	"github.com/finman-app/finman-server/cmd/utils"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes sets up all user-related routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/refresh", h.handleRefreshToken).Methods("POST")
	router.HandleFunc("/me", utils.AuthMiddleware(h.handleMe)).Methods("GET")
	router.HandleFunc("/reset-password", h.handlePasswordResetRequest).Methods("POST")
	router.HandleFunc("/reset-password/confirm", h.handlePasswordReset).Methods("POST")
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
    var registerRequest struct {
        FullName string `json:"full_name"`
        Email    string `json:"email"`
        Password string `json:"password"`
    }
    if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
        utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
        return
    }
    if registerRequest.FullName == "" || registerRequest.Email == "" || registerRequest.Password == "" {
        utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields")
        return
    }

    // Validate unique email
    var existingUser models.User
    if result := h.db.Where("email = ?", registerRequest.Email).First(&existingUser); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
        if result.Error != nil {
            log.Printf("Error checking existing email: %v", result.Error)
            utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
            return
        }
        log.Printf("Registration attempt with duplicate email")
        utils.RespondWithError(w, http.StatusConflict, "Email is already in use")
        return
    }

    // Hash password
    passwordHash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
    if err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error hashing password")
        return
    }

    user := models.User{
        FullName:     registerRequest.FullName,
        Email:        registerRequest.Email,
        PasswordHash: string(passwordHash),
    }

    if err := h.db.Create(&user).Error; err != nil {
        log.Printf("Error registering user: %v", err)
        utils.RespondWithError(w, http.StatusInternalServerError, "Error registering user")
        return
    }

    utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
        "message": "User registered successfully",
        "user_id": user.ID,
    })
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
    var loginRequest struct {
        Email    string `json:"email"`
        Password string `json:"password"`
    }

    if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
        utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
        return
    }

    var user models.User
    result := h.db.Where("email = ?", loginRequest.Email).First(&user)
    if result.Error != nil {
        utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
        return
    }

    // Verify password
    if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
        utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
        return
    }

    // Generate Access Token for the API
    accessToken, err := generateJWT(user.ID, 60)
    if err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error generating access token")
        return
    }

    // Generate Refresh Token
    refreshToken, err := generateRefreshToken(user.ID)
    if err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error generating refresh token")
        return
    }

    // Save Refresh Token to Database (for invalidation purposes)
    if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error saving refresh token")
        return
    }

    utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
        "message":       "Login successful",
        "access_token":  accessToken,
        "refresh_token": refreshToken,
        "user_id":       user.ID,
    })
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
    var refreshRequest struct {
        RefreshToken string `json:"refresh_token"`
    }
    if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil || refreshRequest.RefreshToken == "" {
        utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
        return
    }

    var user models.User
    result := h.db.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&user)
    if result.Error != nil {
        utils.RespondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
        return
    }
    if time.Now().After(user.RefreshTokenExpiredAt) {
        utils.RespondWithError(w, http.StatusUnauthorized, "Refresh token expired")
        return
    }

    accessToken, err := generateJWT(user.ID, 60)
    if err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error generating access token")
        return
    }

    // Rotate the refresh token on every use
    refreshToken, err := generateRefreshToken(user.ID)
    if err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error generating refresh token")
        return
    }
    if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error saving refresh token")
        return
    }

    utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
        "access_token":  accessToken,
        "refresh_token": refreshToken,
    })
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
    userID, err := utils.GetUserIDFromContext(r)
    if err != nil {
        utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
        return
    }

    var user models.User
    if result := h.db.First(&user, userID); result.Error != nil {
        utils.RespondWithError(w, http.StatusNotFound, "User not found")
        return
    }

    utils.RespondWithJSON(w, http.StatusOK, user)
}

func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
    var resetRequest struct {
        Email string `json:"email"`
    }
    if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
        utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
        return
    }

    // Always answer the same way so the endpoint can't be used to probe for
    // registered emails.
    response := map[string]string{"message": "If that email is registered, a reset link has been sent"}

    var user models.User
    if result := h.db.Where("email = ?", resetRequest.Email).First(&user); result.Error != nil {
        utils.RespondWithJSON(w, http.StatusOK, response)
        return
    }

    resetToken := models.PasswordResetToken{
        UserID:    user.ID,
        Token:     uuid.New().String(),
        ExpiresAt: time.Now().Add(15 * time.Minute),
    }
    if err := h.db.Create(&resetToken).Error; err != nil {
        log.Printf("Error saving reset token: %v", err)
        utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
        return
    }

    go func() {
        if err := sendResetEmail(user.Email, resetToken.Token); err != nil {
            log.Printf("Error sending reset email: %v", err)
        }
    }()

    utils.RespondWithJSON(w, http.StatusOK, response)
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
    var confirmRequest struct {
        Token       string `json:"token"`
        NewPassword string `json:"new_password"`
    }
    if err := json.NewDecoder(r.Body).Decode(&confirmRequest); err != nil || confirmRequest.Token == "" || confirmRequest.NewPassword == "" {
        utils.RespondWithError(w, http.StatusBadRequest, "Token and new password are required")
        return
    }

    var resetToken models.PasswordResetToken
    if result := h.db.Where("token = ?", confirmRequest.Token).First(&resetToken); result.Error != nil {
        utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
        return
    }
    if time.Now().After(resetToken.ExpiresAt) {
        h.db.Delete(&resetToken)
        utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
        return
    }

    passwordHash, err := bcrypt.GenerateFromPassword([]byte(confirmRequest.NewPassword), bcrypt.DefaultCost)
    if err != nil {
        utils.RespondWithError(w, http.StatusInternalServerError, "Error hashing password")
        return
    }

    if err := h.db.Model(&models.User{}).Where("id = ?", resetToken.UserID).Update("password_hash", string(passwordHash)).Error; err != nil {
        log.Printf("Error updating password: %v", err)
        utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
        return
    }
    h.db.Delete(&resetToken)

    utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func generateJWT(userID uint, expirationMinutes int) (string, error) {
    claims := &jwt.RegisteredClaims{
        Subject:   fmt.Sprint(userID),
        ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute * time.Duration(expirationMinutes))),
    }
    token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

func generateRefreshToken(userID uint) (string, error) {
    // Generate cryptographically secure random bytes
    b := make([]byte, 32)
    _, err := rand.Read(b)
    if err != nil {
        return "", err
    }

    // Use HMAC to create a token that's tied to the user
    mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
    mac.Write([]byte(fmt.Sprintf("%d", userID)))
    mac.Write(b)

    signature := mac.Sum(nil)
    return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, userID uint, refreshToken string) error {
    expirationTime := time.Now().Add(30 * 24 * time.Hour) // 30 days
    return db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
        "refresh_token":            refreshToken,
        "refresh_token_expired_at": expirationTime,
    }).Error
}

// sendResetEmail mails the password reset token to the user
func sendResetEmail(email, token string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password Reset")
	m.SetBody("text/plain", fmt.Sprintf("Your password reset token is: %s. Ignore this email if you did not request a password reset.", token))

	port, err := strconv.Atoi(smtpPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP port: %v", err)
	}
	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)

	return d.DialAndSend(m)
}
