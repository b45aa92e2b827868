package transport

import (
	"errors"
	"io"
	"net/http"

	"product-catalog/internal/domain"
	"product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
	maxUploadBody     = service.MaxImageSize + multipartOverhead
	maxJSONBody       = 1 << 20
)

func init() {
	_ = middleware.RegisterValidation("sortfield", func(fl validator.FieldLevel) bool {
		_, ok := domain.SortFields[fl.Field().String()]
		return ok
	})
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{uid}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/image", h.UploadImage)
			r.Delete("/image", h.DeleteImage)
		})
	})
}

// Create handles product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.productService.Create(r.Context(), req.toInput())
	if err != nil {
		h.respondWithServiceError(w, r, err, "create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// List handles filtered, sorted and paged product listings
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q, validationErrors := parseProductQuery(r.URL.Query())
	if len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}

	page, err := h.productService.List(r.Context(), q)
	if err != nil {
		h.respondWithServiceError(w, r, err, "list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// Get handles fetching a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.productUID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), uid)
	if err != nil {
		h.respondWithServiceError(w, r, err, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Update handles partial product updates
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.productUID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.productService.Update(r.Context(), uid, req.toInput())
	if err != nil {
		h.respondWithServiceError(w, r, err, "update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles product removal and returns the deleted product
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.productUID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Delete(r.Context(), uid)
	if err != nil {
		h.respondWithServiceError(w, r, err, "delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// UploadImage handles attaching an image from the multipart field "file"
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.productUID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.RespondWithError(w, http.StatusBadRequest, "file exceeds the 10 MiB limit")
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "request must be multipart/form-data with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "file", Message: "This field is required"},
		})
		return
	}
	defer file.Close()

	if declared := header.Header.Get("Content-Type"); declared != "" && !service.IsAllowedImageType(declared) {
		middleware.RespondWithError(w, http.StatusBadRequest, "unsupported image type "+declared)
		return
	}
	if header.Size > service.MaxImageSize {
		middleware.RespondWithError(w, http.StatusBadRequest, "file exceeds the 10 MiB limit")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, service.MaxImageSize+1))
	if err != nil {
		h.respondWithServiceError(w, r, err, "read upload")
		return
	}

	product, err := h.productService.AttachImage(r.Context(), uid, service.Upload{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "attach image")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteImage handles detaching a product's image
func (h *ProductHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.productUID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.DetachImage(r.Context(), uid)
	if err != nil {
		h.respondWithServiceError(w, r, err, "detach image")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// productUID reads the uid path parameter. A value that is not a UUID
// cannot name a product and is answered with 404.
func (h *ProductHandler) productUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := chi.URLParam(r, "uid")
	if _, err := uuid.Parse(uid); err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, (&service.NotFoundError{UID: uid}).Error())
		return "", false
	}
	return uid, true
}

func (h *ProductHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := middleware.DecodeAndValidate(r, v); err != nil {
		h.logger.Debug("Request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *ProductHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidImage):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Failed to "+action,
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
