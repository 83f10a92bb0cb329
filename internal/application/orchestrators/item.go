package orchestrators

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"rancho/internal/domain/item"
)

// ItemStoreForOrchestrator defines the item store interface needed by item orchestrators.
type ItemStoreForOrchestrator interface {
	GetByID(ctx context.Context, id string) (item.Item, error)
	Create(ctx context.Context, it item.Item) (item.Item, error)
	Update(ctx context.Context, it item.Item) error
	SetAvailable(ctx context.Context, id string, available bool) error
	Delete(ctx context.Context, id string) error
}

// ImageStore defines the upload store interface needed by item orchestrators.
type ImageStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Remove(name string) error
}

// ItemForm is the raw admin form submission. Price is parsed here, not in the handler.
type ItemForm struct {
	Title       string
	Description string
	Price       string
	Category    string
}

// Photo is an uploaded image. A nil *Photo means no file was sent.
type Photo struct {
	Filename string
	Content  io.Reader
}

// ItemDeps holds dependencies shared by the item orchestrators.
type ItemDeps struct {
	Items  ItemStoreForOrchestrator
	Images ImageStore
}

// fields parses the submitted price; the remaining fields pass through as typed.
func (f ItemForm) fields() (item.Fields, error) {
	price, err := item.ParsePrice(f.Price)
	if err != nil {
		return item.Fields{}, err
	}
	return item.Fields{
		Title:       f.Title,
		Description: f.Description,
		Price:       price,
		Category:    f.Category,
	}, nil
}

// savePhoto stores p and returns its filename, or "" when p is nil.
func savePhoto(ctx context.Context, images ImageStore, p *Photo) (string, error) {
	if p == nil {
		return "", nil
	}
	name, err := images.Save(ctx, p.Filename, p.Content)
	if err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}
	return name, nil
}

// discardPhoto removes an upload that is no longer referenced. Failures are logged only.
func discardPhoto(images ImageStore, name string) {
	if name == "" || name == item.DefaultImage {
		return
	}
	if err := images.Remove(name); err != nil {
		slog.Warn("item_event", "event", "photo_remove_failed", "image", name, "error", err)
	}
}

// --- Create Item ---

// CreateItemInput carries input for the create item orchestrator.
type CreateItemInput struct {
	Form  ItemForm
	Photo *Photo
}

// ExecuteCreateItem validates the form, stores the photo if any, and persists a new item.
// PRE: none
// POST: item stored available, with the photo filename or item.DefaultImage
func ExecuteCreateItem(ctx context.Context, input CreateItemInput, deps ItemDeps) (item.Item, error) {
	f, err := input.Form.fields()
	if err != nil {
		return item.Item{}, err
	}
	candidate := item.New(f, "")
	if err := candidate.Validate(); err != nil {
		return item.Item{}, err
	}

	image, err := savePhoto(ctx, deps.Images, input.Photo)
	if err != nil {
		return item.Item{}, err
	}
	if image != "" {
		candidate.Image = image
	}

	created, err := deps.Items.Create(ctx, candidate)
	if err != nil {
		discardPhoto(deps.Images, image)
		return item.Item{}, err
	}
	slog.Info("item_event", "event", "item_created", "item_id", created.ID, "image", created.Image)
	return created, nil
}

// --- Update Item ---

// UpdateItemInput carries input for the update item orchestrator.
type UpdateItemInput struct {
	ID    string
	Form  ItemForm
	Photo *Photo
}

// ExecuteUpdateItem applies an edit form to an existing item.
// PRE: none
// POST: editable fields replaced; image replaced only when a photo was sent, and the
// previous upload is removed once the new one is stored
func ExecuteUpdateItem(ctx context.Context, input UpdateItemInput, deps ItemDeps) (item.Item, error) {
	it, err := deps.Items.GetByID(ctx, input.ID)
	if err != nil {
		return item.Item{}, err
	}
	f, err := input.Form.fields()
	if err != nil {
		return item.Item{}, err
	}
	previous := it.Image
	it.Apply(f, "")
	if err := it.Validate(); err != nil {
		return item.Item{}, err
	}

	image, err := savePhoto(ctx, deps.Images, input.Photo)
	if err != nil {
		return item.Item{}, err
	}
	it.Apply(f, image)

	if err := deps.Items.Update(ctx, it); err != nil {
		discardPhoto(deps.Images, image)
		return item.Item{}, err
	}
	if image != "" && previous != image {
		discardPhoto(deps.Images, previous)
	}
	slog.Info("item_event", "event", "item_updated", "item_id", it.ID)
	return it, nil
}

// --- Toggle Item ---

// ExecuteToggleItem flips an item's availability and returns the updated item.
// PRE: none
// POST: Available is the negation of its previous value
func ExecuteToggleItem(ctx context.Context, id string, deps ItemDeps) (item.Item, error) {
	it, err := deps.Items.GetByID(ctx, id)
	if err != nil {
		return item.Item{}, err
	}
	it.Toggle()
	if err := deps.Items.SetAvailable(ctx, it.ID, it.Available); err != nil {
		return item.Item{}, err
	}
	slog.Info("item_event", "event", "item_toggled", "item_id", it.ID, "available", it.Available)
	return it, nil
}

// --- Delete Item ---

// ExecuteDeleteItem removes an item permanently, along with its uploaded photo.
// PRE: none
// POST: item gone from the store; a non-default image file is removed
func ExecuteDeleteItem(ctx context.Context, id string, deps ItemDeps) error {
	it, err := deps.Items.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := deps.Items.Delete(ctx, it.ID); err != nil {
		return err
	}
	if it.HasUpload() {
		discardPhoto(deps.Images, it.Image)
	}
	slog.Info("item_event", "event", "item_deleted", "item_id", it.ID)
	return nil
}
