package web

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"rancho/internal/adapters/http/perf"
	"rancho/internal/application/orchestrators"
	"rancho/internal/application/projections"
	"rancho/internal/domain/item"
)

// maxUploadMemory is how much of a multipart body is held in memory; the rest spills to temp files.
const maxUploadMemory = 32 << 20

// perfTopN is how many slowest routes and queries the perf page lists.
const perfTopN = 10

type adminPage struct {
	Menu projections.GetMenuResult
}

type editPage struct {
	Item item.Item
}

type perfPage struct {
	Window   time.Duration
	Snapshot perf.Snapshot
}

func itemDeps() orchestrators.ItemDeps {
	return orchestrators.ItemDeps{Items: stores.ItemStore, Images: stores.UploadStore}
}

// itemError maps orchestrator errors onto status codes.
func itemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, item.ErrNotFound):
		http.Error(w, "item não encontrado", http.StatusNotFound)
	case item.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		internalError(w, err)
	}
}

// parseItemForm reads the admin item form, multipart or urlencoded.
// The returned cleanup closes the uploaded file and removes multipart temp files.
func parseItemForm(r *http.Request) (orchestrators.ItemForm, *orchestrators.Photo, func(), error) {
	cleanup := func() {}
	err := r.ParseMultipartForm(maxUploadMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return orchestrators.ItemForm{}, nil, cleanup, err
	}
	if r.MultipartForm != nil {
		cleanup = func() { _ = r.MultipartForm.RemoveAll() }
	}

	form := orchestrators.ItemForm{
		Title:       r.FormValue("titulo"),
		Description: r.FormValue("descricao"),
		Price:       r.FormValue("preco"),
		Category:    r.FormValue("categoria"),
	}

	var file multipart.File
	var header *multipart.FileHeader
	if r.MultipartForm != nil {
		file, header, err = r.FormFile("foto")
		if errors.Is(err, http.ErrMissingFile) {
			return form, nil, cleanup, nil
		}
		if err != nil {
			return form, nil, cleanup, err
		}
		removeTemp := cleanup
		cleanup = func() {
			_ = file.Close()
			removeTemp()
		}
		return form, &orchestrators.Photo{Filename: header.Filename, Content: file}, cleanup, nil
	}
	return form, nil, cleanup, nil
}

// handleAdmin renders the admin listing.
func handleAdmin(w http.ResponseWriter, r *http.Request) {
	menu, err := projections.QueryGetMenu(r.Context(), projections.GetMenuQuery{}, projections.GetMenuDeps{
		ItemStore: stores.ItemStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, "admin.html", adminPage{Menu: menu})
}

// handleAddItem creates an item from the add form.
func handleAddItem(w http.ResponseWriter, r *http.Request) {
	form, photo, cleanup, err := parseItemForm(r)
	defer cleanup()
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, err := orchestrators.ExecuteCreateItem(r.Context(), orchestrators.CreateItemInput{
		Form:  form,
		Photo: photo,
	}, itemDeps()); err != nil {
		itemError(w, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleToggleItem flips availability.
func handleToggleItem(w http.ResponseWriter, r *http.Request) {
	if _, err := orchestrators.ExecuteToggleItem(r.Context(), r.PathValue("id"), itemDeps()); err != nil {
		itemError(w, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleEditForm renders the edit form prefilled with the item.
func handleEditForm(w http.ResponseWriter, r *http.Request) {
	it, err := stores.ItemStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		itemError(w, err)
		return
	}
	renderTemplate(w, r, "edit.html", editPage{Item: it})
}

// handleEditItem applies the edit form.
func handleEditItem(w http.ResponseWriter, r *http.Request) {
	form, photo, cleanup, err := parseItemForm(r)
	defer cleanup()
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, err := orchestrators.ExecuteUpdateItem(r.Context(), orchestrators.UpdateItemInput{
		ID:    r.PathValue("id"),
		Form:  form,
		Photo: photo,
	}, itemDeps()); err != nil {
		itemError(w, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleDeleteItem removes an item.
func handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteDeleteItem(r.Context(), r.PathValue("id"), itemDeps()); err != nil {
		itemError(w, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handlePerf renders request and query timings over ?window= (default 1h).
func handlePerf(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "window must be a positive duration like 15m", http.StatusBadRequest)
			return
		}
		window = d
	}
	if perfCollector == nil {
		slog.Warn("perf_event", "event", "collector_missing")
		http.Error(w, "perf collection disabled", http.StatusNotFound)
		return
	}
	renderTemplate(w, r, "perf.html", perfPage{
		Window:   window,
		Snapshot: perfCollector.Snapshot(timeNow().Add(-window), perfTopN),
	})
}
