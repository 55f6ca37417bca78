package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitehive/sitehive-backend/internal/users"
)

// Store is the users-repo surface the auth endpoints need.
type Store interface {
	UserSource
	Create(ctx context.Context, username, phone, passwordHash string, recoveryCodeHash *string) (*users.User, error)
	ByUsername(ctx context.Context, username string) (*users.User, error)
	ByPhone(ctx context.Context, phone string) (*users.User, error)
	RecordLoginSuccess(ctx context.Context, id, ip string) error
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRecoveryCode(ctx context.Context, id, recoveryCodeHash string) error
	AddLoginLog(ctx context.Context, userID, ip, userAgent, status string) error
}

type Options struct {
	Secret           []byte
	TokenTTL         time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
}

type Handler struct {
	store   Store
	opts    Options
	limiter *loginLimiter
	log     *slog.Logger
}

func NewHandler(store Store, opts Options, log *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		opts:    opts,
		limiter: newLoginLimiter(10, 5),
		log:     log,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/forgot", h.forgot)
	rg.GET("/lookup-username", h.lookupUsername)

	authed := rg.Group("")
	authed.Use(RequireUser(h.store, h.opts.Secret))
	authed.POST("/change-password", h.changePassword)
	authed.POST("/set-recovery-code", h.setRecoveryCode)
}

type registerReq struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	RecoveryCode string `json:"recoveryCode"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username, password and phone are required"})
		return
	}
	if !users.ValidUsername(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username must be lowercase letters, digits and hyphens"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 6 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internal(c, "hash password", err)
		return
	}

	var recoveryHash *string
	if req.RecoveryCode != "" {
		rh, err := bcrypt.GenerateFromPassword([]byte(req.RecoveryCode), bcrypt.DefaultCost)
		if err != nil {
			h.internal(c, "hash recovery code", err)
			return
		}
		s := string(rh)
		recoveryHash = &s
	}

	u, err := h.store.Create(c.Request.Context(), req.Username, req.Phone, string(hash), recoveryHash)
	switch err {
	case nil:
	case users.ErrUsernameTaken:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username already exists"})
		return
	case users.ErrPhoneTaken:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Phone already registered"})
		return
	default:
		h.internal(c, "create user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "userId": u.ID})
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	ip := c.ClientIP()
	if !h.limiter.Allow(ip) {
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "Too many login attempts, slow down"})
		return
	}

	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	u, err := h.store.ByUsername(c.Request.Context(), req.Username)
	if err == users.ErrNotFound {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}
	if err != nil {
		h.internal(c, "load user", err)
		return
	}

	if u.Status == users.StatusBanned {
		c.JSON(http.StatusForbidden, gin.H{"message": "Account is banned"})
		return
	}
	if u.Locked(time.Now()) {
		c.JSON(http.StatusLocked, gin.H{"message": "Account is temporarily locked. Use phone and recovery code to reset."})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		locked, err := h.store.RecordLoginFailure(c.Request.Context(), u.ID, h.opts.LockoutThreshold, h.opts.LockoutDuration)
		if err != nil {
			h.log.Error("record login failure", "err", err)
		}
		h.logLogin(u.ID, ip, c.Request.UserAgent(), "FAILED")
		if locked {
			c.JSON(http.StatusLocked, gin.H{"message": "Account is temporarily locked. Use phone and recovery code to reset."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	if err := h.store.RecordLoginSuccess(c.Request.Context(), u.ID, ip); err != nil {
		h.log.Error("record login success", "err", err)
	}
	h.logLogin(u.ID, ip, c.Request.UserAgent(), "SUCCESS")

	token, err := GenerateToken(u.ID, u.Username, u.Role, h.opts.Secret, h.opts.TokenTTL)
	if err != nil {
		h.internal(c, "sign token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "username": u.Username, "role": u.Role})
}

type forgotReq struct {
	Phone        string `json:"phone"`
	RecoveryCode string `json:"recoveryCode"`
	NewPassword  string `json:"newPassword"`
}

func (h *Handler) forgot(c *gin.Context) {
	var req forgotReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" || req.RecoveryCode == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Phone, recoveryCode and newPassword are required"})
		return
	}

	u, err := h.store.ByPhone(c.Request.Context(), req.Phone)
	if err == users.ErrNotFound {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid phone"})
		return
	}
	if err != nil {
		h.internal(c, "load user", err)
		return
	}
	if u.Status == users.StatusBanned {
		c.JSON(http.StatusForbidden, gin.H{"message": "Account is banned"})
		return
	}
	if u.RecoveryCodeHash == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Recovery code not set"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(*u.RecoveryCodeHash), []byte(req.RecoveryCode)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid recovery code"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internal(c, "hash password", err)
		return
	}
	if err := h.store.UpdatePassword(c.Request.Context(), u.ID, string(hash)); err != nil {
		h.internal(c, "update password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) changePassword(c *gin.Context) {
	u := CurrentUser(c)

	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "oldPassword and newPassword are required"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid old password"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internal(c, "hash password", err)
		return
	}
	if err := h.store.UpdatePassword(c.Request.Context(), u.ID, string(hash)); err != nil {
		h.internal(c, "update password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}

type setRecoveryCodeReq struct {
	RecoveryCode string `json:"recoveryCode"`
}

func (h *Handler) setRecoveryCode(c *gin.Context) {
	u := CurrentUser(c)

	var req setRecoveryCodeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.RecoveryCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "recoveryCode is required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.RecoveryCode), bcrypt.DefaultCost)
	if err != nil {
		h.internal(c, "hash recovery code", err)
		return
	}
	if err := h.store.UpdateRecoveryCode(c.Request.Context(), u.ID, string(hash)); err != nil {
		h.internal(c, "update recovery code", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recovery code set"})
}

func (h *Handler) lookupUsername(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "phone is required"})
		return
	}

	u, err := h.store.ByPhone(c.Request.Context(), phone)
	if err == users.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		h.internal(c, "load user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": u.Username})
}

// logLogin appends an audit row without holding up the response.
func (h *Handler) logLogin(userID, ip, userAgent, status string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.store.AddLoginLog(ctx, userID, ip, userAgent, status); err != nil {
			h.log.Error("write login log", "err", err)
		}
	}()
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.log.Error(op, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}
