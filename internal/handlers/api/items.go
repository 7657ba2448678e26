package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/config"
	"rankwatch/internal/db"
	"rankwatch/internal/middleware"
	"rankwatch/internal/models"
	"rankwatch/internal/ranking"
	"rankwatch/internal/validation"
)

// ItemStore is the read and delete side of tracked item storage.
type ItemStore interface {
	ListTrackedItemsByOwner(ctx context.Context, ownerID string) ([]models.TrackedItem, error)
	GetTrackedItem(ctx context.Context, id uuid.UUID, ownerID string) (*models.TrackedItem, error)
	DeleteTrackedItem(ctx context.Context, id uuid.UUID, ownerID string) error
	DeleteTrackedItems(ctx context.Context, ownerID string, ids []uuid.UUID) (int64, error)
	GetRankHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]models.RankHistoryEntry, error)
}

// Registrar registers and checks individual items.
type Registrar interface {
	Register(ctx context.Context, ownerID, externalID, keyword string) (*models.TrackedItem, error)
	RegisterQuick(ctx context.Context, ownerID, externalID, keyword string) (*models.TrackedItem, error)
	Check(ctx context.Context, ownerID string, id uuid.UUID) (*models.TrackedItem, error)
}

// Refresher refreshes every keyword an owner tracks.
type Refresher interface {
	RefreshForOwner(ctx context.Context, ownerID string) (ranking.RefreshResult, error)
}

// ItemHandler serves the tracked item JSON API.
type ItemHandler struct {
	items     ItemStore
	tracker   Registrar
	refresher Refresher
	cfg       *config.Config
	logger    *logrus.Logger
}

// NewItemHandler creates a new item handler.
func NewItemHandler(items ItemStore, tracker Registrar, refresher Refresher, cfg *config.Config, logger *logrus.Logger) *ItemHandler {
	return &ItemHandler{
		items:     items,
		tracker:   tracker,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
	}
}

// List returns the owner's items, newest first.
func (h *ItemHandler) List(c fiber.Ctx) error {
	items, err := h.items.ListTrackedItemsByOwner(c.Context(), middleware.OwnerID(c))
	if err != nil {
		return h.internalError(c, err, "failed to fetch items")
	}
	if items == nil {
		items = []models.TrackedItem{}
	}
	return jsonSuccess(c, items)
}

type registerRequest struct {
	ExternalItemID string `json:"external_item_id"`
	Keyword        string `json:"keyword"`
}

// parseRegister decodes and validates a registration body. On failure the
// error response has already been written and ok is false.
func parseRegister(c fiber.Ctx) (req registerRequest, ok bool, err error) {
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return req, false, jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.ExternalItemID = validation.NormalizeExternalID(req.ExternalItemID)
	req.Keyword = validation.NormalizeKeyword(req.Keyword)

	if valid, msg := validation.ValidateExternalID(req.ExternalItemID); !valid {
		return req, false, jsonError(c, fiber.StatusBadRequest, msg)
	}
	if valid, msg := validation.ValidateKeyword(req.Keyword); !valid {
		return req, false, jsonError(c, fiber.StatusBadRequest, msg)
	}
	return req, true, nil
}

// Create registers an item and looks up its current rank.
func (h *ItemHandler) Create(c fiber.Ctx) error {
	req, ok, err := parseRegister(c)
	if !ok {
		return err
	}

	item, err := h.tracker.Register(c.Context(), middleware.OwnerID(c), req.ExternalItemID, req.Keyword)
	if err != nil {
		return h.registerError(c, err)
	}
	return jsonSuccess(c.Status(fiber.StatusCreated), item)
}

// CreateQuick registers an item without looking it up.
func (h *ItemHandler) CreateQuick(c fiber.Ctx) error {
	req, ok, err := parseRegister(c)
	if !ok {
		return err
	}

	item, err := h.tracker.RegisterQuick(c.Context(), middleware.OwnerID(c), req.ExternalItemID, req.Keyword)
	if err != nil {
		return h.registerError(c, err)
	}
	return jsonSuccess(c.Status(fiber.StatusCreated), item)
}

func (h *ItemHandler) registerError(c fiber.Ctx, err error) error {
	if errors.Is(err, db.ErrAlreadyTracked) {
		return jsonError(c, fiber.StatusConflict, "this item is already tracked for the keyword")
	}
	return h.internalError(c, err, "failed to register item")
}

// Delete removes one owned item and its history.
func (h *ItemHandler) Delete(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}

	if err := h.items.DeleteTrackedItem(c.Context(), id, middleware.OwnerID(c)); err != nil {
		if errors.Is(err, db.ErrTrackedItemNotFound) {
			return jsonError(c, fiber.StatusNotFound, "item not found")
		}
		return h.internalError(c, err, "failed to delete item")
	}
	return jsonSuccess(c, fiber.Map{"id": id})
}

// BulkDelete removes several owned items. Ids owned by someone else are ignored.
func (h *ItemHandler) BulkDelete(c fiber.Ctx) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(body.IDs) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "no items selected")
	}

	ids := make([]uuid.UUID, 0, len(body.IDs))
	for _, raw := range body.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid item id %q", raw))
		}
		ids = append(ids, id)
	}

	deleted, err := h.items.DeleteTrackedItems(c.Context(), middleware.OwnerID(c), ids)
	if err != nil {
		return h.internalError(c, err, "failed to delete items")
	}
	return jsonSuccess(c, models.BulkDeleteResponse{Deleted: deleted})
}

// Check refreshes the rank of a single item.
func (h *ItemHandler) Check(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}

	item, err := h.tracker.Check(c.Context(), middleware.OwnerID(c), id)
	if err != nil {
		if errors.Is(err, db.ErrTrackedItemNotFound) {
			return jsonError(c, fiber.StatusNotFound, "item not found")
		}
		return h.internalError(c, err, "failed to check rank")
	}

	return jsonSuccess(c, models.CheckResponse{
		ItemID:    item.ID,
		Rank:      item.CurrentRank,
		FirstRank: item.FirstRank,
		Title:     item.Title,
		StoreName: item.StoreName,
		CheckedAt: item.LastCheckedAt,
	})
}

// Refresh refreshes every keyword the owner tracks.
func (h *ItemHandler) Refresh(c fiber.Ctx) error {
	result, err := h.refresher.RefreshForOwner(c.Context(), middleware.OwnerID(c))
	if err != nil {
		return h.internalError(c, err, "failed to refresh ranks")
	}

	return jsonSuccess(c, models.RefreshResponse{
		Updated:   result.Updated,
		Keywords:  result.Keywords,
		Failed:    result.Failed,
		ElapsedMS: result.Elapsed.Milliseconds(),
	})
}

// History returns the most recent rank observations of an owned item.
func (h *ItemHandler) History(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}

	if _, err := h.items.GetTrackedItem(c.Context(), id, middleware.OwnerID(c)); err != nil {
		if errors.Is(err, db.ErrTrackedItemNotFound) {
			return jsonError(c, fiber.StatusNotFound, "item not found")
		}
		return h.internalError(c, err, "failed to fetch item")
	}

	history, err := h.items.GetRankHistory(c.Context(), id, h.cfg.HistoryLimit)
	if err != nil {
		return h.internalError(c, err, "failed to fetch history")
	}
	if history == nil {
		history = []models.RankHistoryEntry{}
	}
	return jsonSuccess(c, history)
}

var exportHeader = []string{"Store", "Title", "Item ID", "Keyword", "First Rank", "Previous Rank", "Current Rank"}

// Export downloads the owner's items as CSV with a UTF-8 byte order mark so
// spreadsheet tools detect the encoding.
func (h *ItemHandler) Export(c fiber.Ctx) error {
	items, err := h.items.ListTrackedItemsByOwner(c.Context(), middleware.OwnerID(c))
	if err != nil {
		return h.internalError(c, err, "failed to export items")
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	_ = w.Write(exportHeader)
	for _, item := range items {
		_ = w.Write([]string{
			item.StoreName,
			item.Title,
			item.ExternalItemID,
			item.Keyword,
			rankOrUnset(item.FirstRank),
			rankOrUnset(item.PrevRank),
			rankOrUnset(item.CurrentRank),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return h.internalError(c, err, "failed to export items")
	}

	filename := fmt.Sprintf("rank_%s.csv", time.Now().In(h.cfg.Location()).Format("20060102_1504"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

func rankOrUnset(rank string) string {
	if rank == "" {
		return models.RankUnset
	}
	return rank
}

func (h *ItemHandler) internalError(c fiber.Ctx, err error, message string) error {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"path":     c.Path(),
		"owner_id": middleware.OwnerID(c),
	}).Error(message)
	return jsonError(c, fiber.StatusInternalServerError, message)
}

// Register mounts the item routes on router.
func (h *ItemHandler) Register(router fiber.Router) {
	router.Get("/items", h.List)
	router.Post("/items", h.Create)
	router.Post("/items/quick", h.CreateQuick)
	router.Post("/items/bulk-delete", h.BulkDelete)
	router.Delete("/items/:id", h.Delete)
	router.Post("/items/:id/check", h.Check)
	router.Get("/items/:id/history", h.History)
	router.Post("/refresh", h.Refresh)
	router.Get("/export", h.Export)
}
