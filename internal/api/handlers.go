package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"housingsearch/server/config"
	"housingsearch/server/internal/database"
	"housingsearch/server/internal/models"
	"housingsearch/server/internal/search"
	"housingsearch/server/internal/telegram"
)

const serviceName = "Telegram Housing Search API"

// Notifier tells users about listings they liked
type Notifier interface {
	Enabled() bool
	NotifyLiked(ctx context.Context, telegramID int64, listing *models.Listing) error
}

type Handler struct {
	db       *database.Database
	search   *search.Service
	notifier Notifier
	config   *config.Config
	logger   *logrus.Logger
}

// SearchRequest is the body of a property search. Center is [lon, lat].
type SearchRequest struct {
	Center       []float64 `json:"center" binding:"required,len=2"`
	RadiusKm     *float64  `json:"radius_km"`
	PropertyType *string   `json:"property_type"`
	MinPrice     *float64  `json:"min_price"`
	MaxPrice     *float64  `json:"max_price"`
	Rooms        []int     `json:"rooms"`
}

func NewHandler(db *database.Database, searchService *search.Service, notifier Notifier, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	return &Handler{
		db:       db,
		search:   searchService,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
	}
}

func (h *Handler) defaultRadius() float64 {
	if h.config.Search.DefaultRadiusKm > 0 {
		return h.config.Search.DefaultRadiusKm
	}
	return models.DefaultSearchRadiusKm
}

func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.WithError(err).Error("Database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": serviceName})
		return
	}

	body := gin.H{"status": "healthy", "service": serviceName}
	if count, err := h.db.CountListings(ctx); err == nil {
		body["listings"] = count
	} else {
		h.logger.WithError(err).Warn("Failed to count listings")
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) GetMetroStations(c *gin.Context) {
	stations, err := h.db.ListReferencePoints(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load metro stations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load metro stations"})
		return
	}
	c.JSON(http.StatusOK, stations)
}

func (h *Handler) UpsertProfile(c *gin.Context) {
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		h.logger.WithError(err).Warn("Invalid profile body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	stored, created, err := h.db.UpsertProfile(c.Request.Context(), profile)
	if err != nil {
		h.logger.WithError(err).WithField("telegram_id", profile.TelegramID).Error("Failed to save profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"created": created,
		"profile": stored,
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid telegram id"})
		return
	}

	profile, err := h.db.GetProfile(c.Request.Context(), telegramID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		h.respondError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) SearchProperties(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid search body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	center, err := models.NewGeoPoint(req.Center[0], req.Center[1])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := models.SearchFilter{
		Center:       center,
		RadiusKm:     h.defaultRadius(),
		PropertyType: req.PropertyType,
		MinPrice:     req.MinPrice,
		MaxPrice:     req.MaxPrice,
		Rooms:        req.Rooms,
	}
	if req.RadiusKm != nil {
		filter.RadiusKm = *req.RadiusKm
	}
	if err := filter.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.search.Search(c.Request.Context(), filter))
}

func (h *Handler) SearchNearMetro(c *gin.Context) {
	stationName := strings.TrimSpace(c.Query("station_name"))
	if stationName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "station_name is required"})
		return
	}

	radiusKm := h.defaultRadius()
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius_km must be a positive number"})
			return
		}
		radiusKm = parsed
	}

	listings, err := h.search.SearchNearStation(c.Request.Context(), stationName, radiusKm)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Metro station not found"})
			return
		}
		h.respondError(c, err, "Failed to search near metro station")
		return
	}
	c.JSON(http.StatusOK, listings)
}

func (h *Handler) LikeProperty(c *gin.Context) {
	propertyID := c.Param("property_id")

	var req models.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid like body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.db.LikeListing(c.Request.Context(), propertyID, req.TelegramID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
			return
		}
		h.respondError(c, err, "Failed to like property")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"listing_id":  propertyID,
		"telegram_id": req.TelegramID,
	}).Info("Property liked")
	h.notifyLiked(propertyID, req.TelegramID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Property liked successfully"})
}

// notifyLiked sends the like notification in the background
func (h *Handler) notifyLiked(propertyID string, telegramID int64) {
	if h.notifier == nil || !h.notifier.Enabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		listing, err := h.db.GetListing(ctx, propertyID)
		if err != nil {
			h.logger.WithError(err).WithField("listing_id", propertyID).Warn("Skipping like notification")
			return
		}
		// Delivery failures are logged by the notifier
		_ = h.notifier.NotifyLiked(ctx, telegramID, listing)
	}()
}

func (h *Handler) GetPropertyContact(c *gin.Context) {
	propertyID := c.Param("property_id")
	telegramID, err := strconv.ParseInt(c.Query("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegram_id is required"})
		return
	}

	contact, err := h.db.GetContactInfo(c.Request.Context(), propertyID, telegramID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		case errors.Is(err, database.ErrNotLiked):
			c.JSON(http.StatusForbidden, gin.H{"error": "You must like the property to see contact information"})
		default:
			h.respondError(c, err, "Failed to get contact info")
		}
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) ValidateTelegramData(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Telegram data"})
		return
	}

	user, err := telegram.ParseWebAppData(body)
	if err != nil {
		h.logger.WithError(err).Warn("Invalid Telegram data")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.TelegramValidation{Valid: true, User: user})
}

// respondError maps store errors onto HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, database.ErrNotLiked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidFilter), errors.Is(err, models.ErrInvalidGeoPoint):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
