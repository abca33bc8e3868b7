package reviews

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"treadline/models"
	"treadline/mq"
	"treadline/utils"
)

// ReviewSource is the review collaborator.
type ReviewSource interface {
	List(ctx context.Context, productType models.ProductType, productID string) ([]models.Review, error)
	Create(ctx context.Context, r models.Review) (models.Review, error)
	Update(ctx context.Context, r models.Review) (models.Review, error)
	Delete(ctx context.Context, productType models.ProductType, productID, reviewID string) error
}

type Handler struct {
	Reviews ReviewSource
	Events  mq.Emitter
}

func NewHandler(reviews ReviewSource) *Handler {
	return &Handler{Reviews: reviews, Events: mq.Nop{}}
}

type reviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (in reviewInput) valid() bool {
	return in.Rating >= 1 && in.Rating <= 5 && strings.TrimSpace(in.Comment) != ""
}

func productFrom(ps httprouter.Params) (models.ProductType, string, bool) {
	pt := models.ProductType(ps.ByName("productType"))
	id := ps.ByName("productId")
	return pt, id, pt.Valid() && id != ""
}

// GET /api/reviews/:productType/:productId
func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pt, id, ok := productFrom(ps)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product")
		return
	}
	reviews, err := h.Reviews.List(ctx, pt, id)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to retrieve reviews")
		return
	}

	var sum int
	for _, rv := range reviews {
		sum += rv.Rating
	}
	avg := 0.0
	if len(reviews) > 0 {
		avg = float64(sum) / float64(len(reviews))
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"reviews": reviews, "count": len(reviews), "average": avg})
}

// POST /api/reviews/:productType/:productId
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	pt, id, ok := productFrom(ps)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product")
		return
	}

	var in reviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.valid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid review data")
		return
	}

	// one review per user per product; the backend does not enforce this
	existing, err := h.Reviews.List(ctx, pt, id)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to check existing reviews")
		return
	}
	for _, rv := range existing {
		if rv.User == userID {
			utils.RespondWithError(w, http.StatusConflict, "You have already reviewed this product")
			return
		}
	}

	created, err := h.Reviews.Create(ctx, models.Review{
		Product:     id,
		ProductType: pt,
		Rating:      in.Rating,
		Comment:     strings.TrimSpace(in.Comment),
		User:        userID,
	})
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to create review")
		return
	}
	h.Events.Emit(ctx, mq.Event{
		Name:     mq.ReviewCreated,
		UserID:   userID,
		EntityID: created.ID,
		Data:     map[string]any{"product": id, "productType": pt, "rating": in.Rating},
	})
	zap.L().Info("review added", zap.String("user_id", userID), zap.String("product_id", id), zap.Int("rating", in.Rating))
	utils.RespondWithJSON(w, http.StatusCreated, created)
}

// owned finds reviewID on the product and checks the caller may change it.
func (h *Handler) owned(ctx context.Context, w http.ResponseWriter, r *http.Request, pt models.ProductType, productID, reviewID string) (models.Review, bool) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return models.Review{}, false
	}
	reviews, err := h.Reviews.List(ctx, pt, productID)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to retrieve review")
		return models.Review{}, false
	}
	for _, rv := range reviews {
		if rv.ID != reviewID {
			continue
		}
		if rv.User != userID && !utils.IsAdmin(r) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return models.Review{}, false
		}
		return rv, true
	}
	utils.RespondWithError(w, http.StatusNotFound, "Review not found")
	return models.Review{}, false
}

// PUT /api/reviews/:productType/:productId/:reviewId
func (h *Handler) EditReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pt, id, ok := productFrom(ps)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product")
		return
	}
	var in reviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.valid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid update data")
		return
	}

	rv, ok := h.owned(ctx, w, r, pt, id, ps.ByName("reviewId"))
	if !ok {
		return
	}
	rv.Rating = in.Rating
	rv.Comment = strings.TrimSpace(in.Comment)

	updated, err := h.Reviews.Update(ctx, rv)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to update review")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DELETE /api/reviews/:productType/:productId/:reviewId
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pt, id, ok := productFrom(ps)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product")
		return
	}
	rv, ok := h.owned(ctx, w, r, pt, id, ps.ByName("reviewId"))
	if !ok {
		return
	}
	if err := h.Reviews.Delete(ctx, pt, id, rv.ID); err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
