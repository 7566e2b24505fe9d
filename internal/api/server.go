package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/alert"
	"github.com/targetspro/adwatch/internal/auth"
	"github.com/targetspro/adwatch/internal/models"
)

type Server struct {
	db        *gorm.DB
	auth      *auth.Auth
	manager   *alert.Manager
	dispatch  alert.Dispatcher
	escalator *alert.Escalator
	router    *gin.Engine
	logger    zerolog.Logger
}

func NewServer(db *gorm.DB, authn *auth.Auth, manager *alert.Manager, dispatch alert.Dispatcher, escalator *alert.Escalator, logger zerolog.Logger) *Server {
	server := &Server{
		db:        db,
		auth:      authn,
		manager:   manager,
		dispatch:  dispatch,
		escalator: escalator,
		router:    gin.Default(),
		logger:    logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Public routes
	s.router.POST("/api/v1/auth/login", s.login)

	// Protected routes (require authentication)
	api := s.router.Group("/api/v1")
	api.Use(s.auth.Middleware())

	// Trigger ingestion: upstream sync jobs post account events here.
	api.POST("/events/evaluate", s.evaluateEvent)

	// Alert management endpoints
	api.GET("/alerts", s.listAlerts)
	api.GET("/alerts/:id", s.getAlert)
	api.GET("/alerts/:id/deliveries", s.listDeliveries)
	api.POST("/alerts/:id/dispatch", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.dispatchAlert)
	api.POST("/alerts/escalate", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.escalateAlerts)
	api.PUT("/alerts/:id/acknowledge", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.acknowledgeAlert)
	api.PUT("/alerts/:id/resolve", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.resolveAlert)
	api.PUT("/alerts/:id/dismiss", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.dismissAlert)

	// Rule management endpoints
	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.createRule)
		rules.PUT("/:id", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.updateRule)
		rules.DELETE("/:id", auth.RequireRole(models.RoleAdmin), s.deleteRule)
		rules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.enableRule)
		rules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.disableRule)
	}

	// Notification channel endpoints
	channels := api.Group("/channels")
	{
		channels.GET("", s.listChannels)
		channels.GET("/:id", s.getChannel)
		channels.POST("", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.createChannel)
		channels.PUT("/:id", auth.RequireRole(models.RoleAdmin, models.RoleManager), s.updateChannel)
		channels.DELETE("/:id", auth.RequireRole(models.RoleAdmin), s.deleteChannel)
	}

	// User management endpoints
	admin := api.Group("/admin")
	admin.Use(auth.RequireRole(models.RoleAdmin))
	admin.GET("/users", s.listUsers)
	admin.POST("/users", s.createUser)
	admin.PUT("/users/:id", s.updateUser)
	admin.DELETE("/users/:id", s.deleteUser)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

func (s *Server) evaluateEvent(c *gin.Context) {
	var payload alert.TriggerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evaluated, created, err := s.manager.HandleTrigger(payload)
	if err != nil {
		if errors.Is(err, alert.ErrAccountNotFound) {
			// Account rows can lag behind spend events during sync; not an error.
			c.JSON(http.StatusOK, gin.H{"evaluated": 0, "alerts_created": 0})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"evaluated": evaluated, "alerts_created": created})
}

func (s *Server) listAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}

	alerts, err := s.manager.ListAlerts(auth.OrgID(c), c.Query("status"), c.Query("severity"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

func (s *Server) getAlert(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var a models.Alert
	if err := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).First(&a).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}

	c.JSON(http.StatusOK, a)
}

// orgAlertID resolves the :id path param against the caller's org. Alerts
// belonging to another org read as not found.
func (s *Server) orgAlertID(c *gin.Context) (uint, bool) {
	id, ok := pathID(c)
	if !ok {
		return 0, false
	}

	var count int64
	if err := s.db.Model(&models.Alert{}).
		Where("id = ? AND org_id = ?", id, auth.OrgID(c)).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return 0, false
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return 0, false
	}
	return id, true
}

func (s *Server) listDeliveries(c *gin.Context) {
	id, ok := s.orgAlertID(c)
	if !ok {
		return
	}

	var deliveries []models.AlertDelivery
	if err := s.db.Where("alert_id = ?", id).Order("created_at desc").Find(&deliveries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, deliveries)
}

func (s *Server) dispatchAlert(c *gin.Context) {
	id, ok := s.orgAlertID(c)
	if !ok {
		return
	}

	dispatched, failed, err := s.dispatch.Dispatch(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gorm.ErrRecordNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispatched": dispatched, "failed": failed})
}

func (s *Server) escalateAlerts(c *gin.Context) {
	escalated, err := s.escalator.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"escalated": escalated})
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	id, ok := s.orgAlertID(c)
	if !ok {
		return
	}

	if err := s.manager.Acknowledge(id, c.GetString("username")); err != nil {
		s.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "alert acknowledged"})
}

func (s *Server) resolveAlert(c *gin.Context) {
	id, ok := s.orgAlertID(c)
	if !ok {
		return
	}

	if err := s.manager.Resolve(id); err != nil {
		s.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "alert resolved"})
}

func (s *Server) dismissAlert(c *gin.Context) {
	id, ok := s.orgAlertID(c)
	if !ok {
		return
	}

	if err := s.manager.Dismiss(id); err != nil {
		s.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "alert dismissed"})
}

func (s *Server) transitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alert.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, alert.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Rule management handlers

func (s *Server) listRules(c *gin.Context) {
	query := s.db.Where("org_id = ?", auth.OrgID(c))
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	if ruleType := c.Query("rule_type"); ruleType != "" {
		query = query.Where("rule_type = ?", ruleType)
	}

	var rules []models.AlertRule
	if err := query.Order("id").Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var rule models.AlertRule
	if err := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).First(&rule).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (s *Server) createRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.OrgID = auth.OrgID(c)
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.db.Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var existing models.AlertRule
	if err := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).First(&existing).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.ID = existing.ID
	rule.OrgID = existing.OrgID
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.db.Save(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).Delete(&models.AlertRule{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rule deleted successfully"})
}

func (s *Server) enableRule(c *gin.Context) {
	s.setRuleActive(c, true, "rule enabled successfully")
}

func (s *Server) disableRule(c *gin.Context) {
	s.setRuleActive(c, false, "rule disabled successfully")
}

func (s *Server) setRuleActive(c *gin.Context, active bool, message string) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result := s.db.Model(&models.AlertRule{}).
		Where("id = ? AND org_id = ?", id, auth.OrgID(c)).
		Update("is_active", active)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Channel management handlers

func (s *Server) listChannels(c *gin.Context) {
	var channels []models.NotificationChannel
	if err := s.db.Where("org_id = ?", auth.OrgID(c)).Order("id").Find(&channels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, channels)
}

func (s *Server) getChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var channel models.NotificationChannel
	if err := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).First(&channel).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	c.JSON(http.StatusOK, channel)
}

func (s *Server) createChannel(c *gin.Context) {
	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel.OrgID = auth.OrgID(c)
	if err := channel.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.db.Create(&channel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, channel)
}

func (s *Server) updateChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var existing models.NotificationChannel
	if err := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).First(&existing).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel.ID = existing.ID
	channel.OrgID = existing.OrgID
	if err := channel.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.db.Save(&channel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, channel)
}

func (s *Server) deleteChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).Delete(&models.NotificationChannel{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "channel deleted successfully"})
}

// Auth and user management handlers

func (s *Server) login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.Where("username = ?", loginReq.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !user.IsActive || !user.CheckPassword(loginReq.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.auth.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role})
}

type userRequest struct {
	Username      string      `json:"username"`
	Password      string      `json:"password"`
	FullName      string      `json:"full_name"`
	Email         string      `json:"email"`
	Role          models.Role `json:"role"`
	IsActive      *bool       `json:"is_active"`
	WhatsAppOptIn *bool       `json:"whatsapp_opt_in"`
	WhatsAppPhone string      `json:"whatsapp_phone"`
}

func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Where("org_id = ?", auth.OrgID(c)).Order("id").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if !req.Role.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid role: %s", req.Role)})
		return
	}

	user := models.User{
		OrgID:         auth.OrgID(c),
		Username:      req.Username,
		FullName:      req.FullName,
		Email:         req.Email,
		Role:          req.Role,
		ApiKey:        uuid.NewString(),
		IsActive:      true,
		WhatsAppPhone: req.WhatsAppPhone,
	}
	if req.WhatsAppOptIn != nil {
		user.WhatsAppOptIn = *req.WhatsAppOptIn
	}
	if err := user.SetPassword(req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	if err := s.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var user models.User
	if err := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		if !req.Role.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid role: %s", req.Role)})
			return
		}
		user.Role = req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.WhatsAppOptIn != nil {
		user.WhatsAppOptIn = *req.WhatsAppOptIn
	}
	if req.WhatsAppPhone != "" {
		user.WhatsAppPhone = req.WhatsAppPhone
	}
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}
	}

	if err := s.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result := s.db.Where("id = ? AND org_id = ?", id, auth.OrgID(c)).Delete(&models.User{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted successfully"})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
