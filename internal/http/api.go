package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"litvi-store/internal/domain"
	"litvi-store/internal/service"
	"litvi-store/internal/token"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth     service.AuthService
	shipping service.ShippingService
	logger   *logrus.Logger
}

func NewHandler(auth service.AuthService, shipping service.ShippingService, logger *logrus.Logger) *Handler {
	return &Handler{
		auth:     auth,
		shipping: shipping,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(requestLogger(h.logger))

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/verify-otp", h.verifyOTP)
		auth.POST("/login", h.login)
		auth.POST("/send-reset-otp", h.sendResetOTP)
		auth.POST("/reset-password/:token", h.resetPassword)
	}

	shipping := router.Group("/shipping")
	{
		shipping.POST("/save-shipping", h.saveShipping)
		shipping.GET("/get-shipping", h.listShipping)
		shipping.GET("/get-shipping/:userId", h.getShippingByUser)
	}

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
	// Token switches the handler to the password-reset variant.
	Token string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sendResetOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type saveShippingRequest struct {
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address" binding:"required"`
	LandMark string `json:"landMark" binding:"required"`
	City     string `json:"city" binding:"required"`
	State    string `json:"state" binding:"required"`
	ZipCode  string `json:"zipCode" binding:"required"`
}

type userResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type shippingResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	LandMark  string `json:"landMark"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	CreatedAt string `json:"createdAt"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username, email and password are required"})
		return
	}

	err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.registerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "OTP sent to your email"})
}

func (h *Handler) registerError(c *gin.Context, err error) {
	var cdErr *service.CooldownError
	switch {
	case errors.Is(err, service.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username, email and password are required"})
	case errors.Is(err, service.ErrEmailExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already exists"})
	case errors.As(err, &cdErr):
		respondCooldown(c, cdErr)
	case errors.Is(err, service.ErrMailDelivery):
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send OTP"})
	default:
		h.serverError(c, err)
	}
}

// verifyOTP serves both verification variants on one path: requests without
// a token confirm a fresh registration, requests with one confirm a
// password-reset code.
func (h *Handler) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and OTP are required"})
		return
	}

	if req.Token == "" {
		err := h.auth.VerifyRegistration(c.Request.Context(), req.Email, req.OTP)
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"message": "User not found"})
		case errors.Is(err, service.ErrInvalidOTP):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid OTP"})
		case err != nil:
			h.serverError(c, err)
		default:
			c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
		}
		return
	}

	err := h.auth.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP, req.Token)
	switch {
	case errors.Is(err, token.ErrInvalidOrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired token"})
	case errors.Is(err, service.ErrInvalidOTP):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid OTP"})
	case err != nil:
		h.serverError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "OTP verified successfully"})
	}
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	session, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	case errors.Is(err, service.ErrAccountUnverified):
		c.JSON(http.StatusForbidden, gin.H{"message": "Account not verified"})
		return
	case err != nil:
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": session,
		"user": userResponse{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	})
}

func (h *Handler) sendResetOTP(c *gin.Context) {
	var req sendResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		return
	}

	resetToken, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email)
	var cdErr *service.CooldownError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	case errors.As(err, &cdErr):
		respondCooldown(c, cdErr)
		return
	case errors.Is(err, service.ErrMailDelivery):
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send OTP"})
		return
	case err != nil:
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to email", "token": resetToken})
}

func (h *Handler) resetPassword(c *gin.Context) {
	resetToken := c.Param("token")

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "New password and confirmation are required"})
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), resetToken, req.NewPassword, req.ConfirmPassword)
	switch {
	case errors.Is(err, token.ErrInvalidOrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired token"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, service.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Passwords do not match"})
	case errors.Is(err, service.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"message": "New password and confirmation are required"})
	case err != nil:
		h.serverError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
	}
}

func (h *Handler) saveShipping(c *gin.Context) {
	var req saveShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All shipping fields are required"})
		return
	}
	if req.UserID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User ID is required"})
		return
	}

	detail, err := h.shipping.Save(c.Request.Context(), &domain.ShippingDetail{
		UserID:   req.UserID,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		LandMark: req.LandMark,
		City:     req.City,
		State:    req.State,
		ZipCode:  req.ZipCode,
	})
	switch {
	case errors.Is(err, service.ErrShippingUserRequired):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User ID is required"})
	case err != nil:
		h.serverError(c, err)
	default:
		c.JSON(http.StatusCreated, gin.H{
			"message":         "Shipping details saved successfully",
			"shippingDetails": shippingToResponse(*detail),
		})
	}
}

func (h *Handler) listShipping(c *gin.Context) {
	details, err := h.shipping.List(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}

	resp := make([]shippingResponse, len(details))
	for i := range details {
		resp[i] = shippingToResponse(details[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getShippingByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user id"})
		return
	}

	detail, err := h.shipping.LatestByUser(c.Request.Context(), userID)
	switch {
	case errors.Is(err, service.ErrShippingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "No shipping details found"})
	case err != nil:
		h.serverError(c, err)
	default:
		c.JSON(http.StatusOK, shippingToResponse(*detail))
	}
}

func (h *Handler) serverError(c *gin.Context, err error) {
	h.logger.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}

func respondCooldown(c *gin.Context, err *service.CooldownError) {
	seconds := int(err.RetryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.JSON(http.StatusTooManyRequests, gin.H{
		"message":    "OTP was sent recently, please wait before retrying",
		"retryAfter": seconds,
	})
}

func shippingToResponse(detail domain.ShippingDetail) shippingResponse {
	return shippingResponse{
		ID:        detail.ID,
		UserID:    detail.UserID,
		FullName:  detail.FullName,
		Email:     detail.Email,
		Phone:     detail.Phone,
		Address:   detail.Address,
		LandMark:  detail.LandMark,
		City:      detail.City,
		State:     detail.State,
		ZipCode:   detail.ZipCode,
		CreatedAt: detail.CreatedAt.Format(time.RFC3339),
	}
}
