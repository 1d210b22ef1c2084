package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/cache"
	"patrimonio-api/internal/media"
	"patrimonio-api/internal/model"
	"patrimonio-api/internal/repository"
	"patrimonio-api/internal/rowproxy"
)

const (
	idempotencyKeyPrefix = "idempotency:items:"
	idempotencyPending   = "pending"
)

// PhotoResolver turns an upload into a durable URL.
type PhotoResolver interface {
	Resolve(ctx context.Context, up media.Upload) (string, error)
}

// InventoryService handles inventory business logic.
type InventoryService struct {
	items   repository.ItemRepository
	photos  PhotoResolver
	cache   cache.Cache
	idemTTL time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewInventoryService creates a new inventory service. photos may be nil,
// in which case requests carrying a photo are rejected.
func NewInventoryService(items repository.ItemRepository, photos PhotoResolver, c cache.Cache, idemTTL time.Duration, logger logrus.FieldLogger) *InventoryService {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &InventoryService{
		items:   items,
		photos:  photos,
		cache:   c,
		idemTTL: idemTTL,
		log:     logger.WithField("component", "inventory"),
		now:     time.Now,
	}
}

// RegisterItemInput is a new item submission.
type RegisterItemInput struct {
	ID             string
	Name           string
	Category       string
	Location       string
	Photo          *media.Upload
	IdempotencyKey string
}

// RegisterResult is the outcome of RegisterItem. Replayed is set when the
// item was created by an earlier request with the same idempotency key.
type RegisterResult struct {
	Item     *model.InventoryItem
	Replayed bool
}

// RegisterItem validates and stores a new item. Nothing is written when
// validation fails or the id is taken.
func (s *InventoryService) RegisterItem(ctx context.Context, in RegisterItemInput) (*RegisterResult, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)

	if err := required(map[string]string{
		"id":       in.ID,
		"name":     in.Name,
		"category": in.Category,
		"location": in.Location,
	}); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		res, err := s.claimIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil || res != nil {
			return res, err
		}
	}

	item, err := s.register(ctx, in)
	if in.IdempotencyKey != "" {
		s.settleIdempotencyKey(in.IdempotencyKey, item, err)
	}
	if err != nil {
		return nil, err
	}
	return &RegisterResult{Item: item}, nil
}

func (s *InventoryService) register(ctx context.Context, in RegisterItemInput) (*model.InventoryItem, error) {
	// checked before uploading so a duplicate does not leave an orphaned photo
	exists, err := s.items.Exists(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, rowproxy.ErrDuplicateKey
	}

	photoURL, err := s.resolvePhoto(ctx, in.Photo)
	if err != nil {
		return nil, err
	}

	item := &model.InventoryItem{
		ID:        in.ID,
		Name:      in.Name,
		Category:  in.Category,
		Location:  in.Location,
		PhotoURL:  photoURL,
		CreatedAt: s.now().Format(model.TimestampLayout),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"item_id": item.ID, "has_photo": photoURL != ""}).Info("Item registered")
	return item, nil
}

// claimIdempotencyKey marks key as in progress. It returns a result when an
// earlier request with the key already completed.
func (s *InventoryService) claimIdempotencyKey(ctx context.Context, key string) (*RegisterResult, error) {
	cacheKey := idempotencyKeyPrefix + key

	stored, err := s.cache.SetNX(ctx, cacheKey, []byte(idempotencyPending), s.idemTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if stored {
		return nil, nil
	}

	data, err := s.cache.Get(ctx, cacheKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		// expired between the two calls; treat as in flight and let the client retry
		return nil, ErrRequestInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if string(data) == idempotencyPending {
		return nil, ErrRequestInFlight
	}

	var item model.InventoryItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode idempotent result: %w", err)
	}
	return &RegisterResult{Item: &item, Replayed: true}, nil
}

// settleIdempotencyKey stores the created item, or frees the key on failure
// so the client can retry.
func (s *InventoryService) settleIdempotencyKey(key string, item *model.InventoryItem, regErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cacheKey := idempotencyKeyPrefix + key
	if regErr != nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			s.log.WithError(err).Warn("Failed to release idempotency key")
		}
		return
	}

	data, err := json.Marshal(item)
	if err == nil {
		err = s.cache.Set(ctx, cacheKey, data, s.idemTTL)
	}
	if err != nil {
		s.log.WithError(err).Warn("Failed to record idempotent result")
	}
}

func (s *InventoryService) resolvePhoto(ctx context.Context, photo *media.Upload) (string, error) {
	if photo == nil {
		return "", nil
	}
	if s.photos == nil {
		return "", ErrUploadsDisabled
	}
	return s.photos.Resolve(ctx, *photo)
}

// ListItems returns every item with its current row number.
func (s *InventoryService) ListItems(ctx context.Context) ([]*model.InventoryItem, error) {
	return s.items.List(ctx)
}

// GetItem returns one item by id.
func (s *InventoryService) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	return s.items.Get(ctx, strings.TrimSpace(id))
}

// UpdateItemInput is an edit submission. RowHint is the row number the
// client listed the item at, or 0.
type UpdateItemInput struct {
	RowHint  int
	Name     string
	Category string
	Location string
	Photo    *media.Upload
}

// UpdateItem rewrites the editable fields of an item and, when a photo is
// sent, its photo URL.
func (s *InventoryService) UpdateItem(ctx context.Context, id string, in UpdateItemInput) (*model.InventoryItem, error) {
	id = strings.TrimSpace(id)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)

	if err := required(map[string]string{
		"id":       id,
		"name":     in.Name,
		"category": in.Category,
		"location": in.Location,
	}); err != nil {
		return nil, err
	}

	exists, err := s.items.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, rowproxy.ErrNotFound
	}

	patch := model.ItemPatch{Name: &in.Name, Category: &in.Category, Location: &in.Location}
	if in.Photo != nil {
		url, err := s.resolvePhoto(ctx, in.Photo)
		if err != nil {
			return nil, err
		}
		patch.PhotoURL = &url
	}

	item, err := s.items.Update(ctx, id, in.RowHint, patch)
	if err != nil {
		var partial *rowproxy.PartialUpdateError
		if errors.As(err, &partial) {
			s.log.WithFields(logrus.Fields{
				"item_id": id,
				"row":     partial.Row,
				"written": partial.Written,
				"failed":  partial.Failed,
			}).Error("Item left partially updated")
		}
		return nil, err
	}

	s.log.WithField("item_id", id).Info("Item updated")
	return item, nil
}

// DeleteItem removes an item.
func (s *InventoryService) DeleteItem(ctx context.Context, id string, rowHint int) error {
	id = strings.TrimSpace(id)
	if err := required(map[string]string{"id": id}); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id, rowHint); err != nil {
		return err
	}
	s.log.WithField("item_id", id).Info("Item deleted")
	return nil
}

// CountItems returns the number of stored items.
func (s *InventoryService) CountItems(ctx context.Context) (int, error) {
	return s.items.Count(ctx)
}
