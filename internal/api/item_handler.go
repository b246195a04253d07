package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dimaystinov/bot-hnushka/internal/api/shared"
	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/source"
	"github.com/dimaystinov/bot-hnushka/internal/store"
	"github.com/dimaystinov/bot-hnushka/internal/task"
)

// Upload form field names.
const (
	uploadFileField     = "file"
	uploadKindField     = "media_kind"
	uploadLanguageField = "language_hint"

	// maxFormValueBytes bounds the non-file multipart fields.
	maxFormValueBytes = 256
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// Submitter queues work items. It is satisfied by *task.Runner.
type Submitter interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*domain.WorkItem, error)
}

// ItemReader reads stored work items.
type ItemReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.WorkItem, error)
}

var _ Submitter = (*task.Runner)(nil)

// ItemHandlerConfig configures uploads.
type ItemHandlerConfig struct {
	// SpoolDir receives uploaded recordings.
	SpoolDir string
	// MaxUploadBytes defaults to domain.MaxMediaBytes.
	MaxUploadBytes int64
}

// ItemHandler handles work item HTTP requests.
type ItemHandler struct {
	submitter Submitter
	items     ItemReader
	config    ItemHandlerConfig
	logger    *slog.Logger
}

// NewItemHandler creates an ItemHandler.
func NewItemHandler(submitter Submitter, items ItemReader, config ItemHandlerConfig, logger *slog.Logger) *ItemHandler {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = domain.MaxMediaBytes
	}
	return &ItemHandler{
		submitter: submitter,
		items:     items,
		config:    config,
		logger:    logger.With("component", "item_handler"),
	}
}

// SubmitItem handles POST /api/items. It accepts either a JSON body naming
// a remote locator or a multipart upload stored in the spool directory.
func (h *ItemHandler) SubmitItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := shared.OwnerRef(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner not found in request")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req task.SubmitRequest
	if mediaType == "multipart/form-data" {
		spooled, err := h.receiveUpload(w, r, owner)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		req = spooled
	} else {
		var body SubmitItemRequest
		if err := shared.DecodeJSON(w, r, &body); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if err := shared.ValidateRequest(&body); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
			return
		}
		if source.Scheme(body.SourceLocator) == "file" {
			HandleAPIError(w, r, ErrLocalLocator, "")
			return
		}
		req = task.SubmitRequest{
			OwnerRef:      owner,
			SourceLocator: body.SourceLocator,
			MediaKind:     domain.MediaKind(body.MediaKind),
			LanguageHint:  body.LanguageHint,
		}
	}

	item, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		if mediaType == "multipart/form-data" {
			h.discardUpload(r.Context(), req.SourceLocator)
		}
		HandleAPIError(w, r, err, "")
		return
	}

	w.Header().Set("Location", "/api/items/"+item.ID.String())
	shared.RespondWithJSON(w, r, http.StatusAccepted, itemToResponse(item))
}

// GetItem handles GET /api/items/{id}. Items of other owners are reported
// as not found.
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := shared.OwnerRef(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner not found in request")
		return
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid item ID")
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err == nil && item.OwnerRef != owner {
		err = store.ErrItemNotFound
	}
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, itemToResponse(item))
}

// ListItems handles GET /api/items?limit=N, newest first.
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := shared.OwnerRef(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner not found in request")
		return
	}

	limit, err := getListLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid limit")
		return
	}

	items, err := h.items.ListByOwner(r.Context(), owner, limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := ItemListResponse{Items: make([]ItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, itemToResponse(item))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// receiveUpload streams the multipart body, writing the file part into the
// spool directory, and returns the request for the spooled file.
func (h *ItemHandler) receiveUpload(w http.ResponseWriter, r *http.Request, owner string) (task.SubmitRequest, error) {
	req := task.SubmitRequest{OwnerRef: owner}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrUnsupportedUpload, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.discardUpload(r.Context(), req.SourceLocator)
			return req, fmt.Errorf("%w: %v", ErrUnsupportedUpload, err)
		}

		switch part.FormName() {
		case uploadFileField:
			if req.SourceLocator != "" {
				h.discardUpload(r.Context(), req.SourceLocator)
				return req, fmt.Errorf("%w: more than one file", ErrUnsupportedUpload)
			}
			req.SourceLocator, err = h.spool(part)
		case uploadKindField:
			var v string
			v, err = readFormValue(part)
			req.MediaKind = domain.MediaKind(v)
		case uploadLanguageField:
			req.LanguageHint, err = readFormValue(part)
		}
		_ = part.Close()
		if err != nil {
			h.discardUpload(r.Context(), req.SourceLocator)
			return req, err
		}
	}

	if req.SourceLocator == "" {
		return req, fmt.Errorf("%w: missing %q part", ErrUnsupportedUpload, uploadFileField)
	}
	return req, nil
}

// spool copies an uploaded file into the spool directory and returns its
// file:// locator.
func (h *ItemHandler) spool(part *multipart.Part) (string, error) {
	if err := os.MkdirAll(h.config.SpoolDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create spool directory: %w", err)
	}

	ext := ""
	if e := filepath.Ext(part.FileName()); safeExt.MatchString(e) {
		ext = strings.ToLower(e)
	}

	f, err := os.CreateTemp(h.config.SpoolDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create spool file: %w", err)
	}
	path := f.Name()

	n, copyErr := io.Copy(f, io.LimitReader(part, h.config.MaxUploadBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("%w: %v", ErrUnsupportedUpload, copyErr)
	case closeErr != nil:
		err = fmt.Errorf("failed to write spool file: %w", closeErr)
	case n == 0:
		err = fmt.Errorf("%w: empty file", ErrUnsupportedUpload)
	case n > h.config.MaxUploadBytes:
		err = fmt.Errorf("%w: more than %d bytes", source.ErrTooLarge, h.config.MaxUploadBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to resolve spool path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// discardUpload removes a spooled file that will not be processed.
func (h *ItemHandler) discardUpload(ctx context.Context, locator string) {
	if locator == "" {
		return
	}
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "file" {
		return
	}
	if err := os.Remove(filepath.FromSlash(u.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.FromContextOrDefault(ctx, h.logger).Warn("failed to remove spooled upload",
			"path", u.Path,
			"error", err)
	}
}

func readFormValue(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxFormValueBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedUpload, err)
	}
	if len(b) > maxFormValueBytes {
		return "", fmt.Errorf("%w: form value too long", ErrUnsupportedUpload)
	}
	return strings.TrimSpace(string(b)), nil
}
