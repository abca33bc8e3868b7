package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"treadline/models"
	"treadline/utils"
)

const (
	recordTTL         = 24 * time.Hour
	inProgressTimeout = 2 * time.Minute
)

var (
	ErrDuplicateKey = errors.New("idempotency key already used")
	ErrNoRecord     = errors.New("idempotency record not found")
)

// Records persists idempotency records.
type Records interface {
	Insert(ctx context.Context, rec models.IdempotencyRecord) error // ErrDuplicateKey on reuse
	Find(ctx context.Context, key string) (models.IdempotencyRecord, error)
	SaveResponse(ctx context.Context, key string, resp models.IdempotentResponse) error
	Delete(ctx context.Context, key string) error
}

// MongoRecords stores records in a collection with a unique key index and a TTL index.
type MongoRecords struct {
	coll *mongo.Collection
}

func NewMongoRecords(coll *mongo.Collection) *MongoRecords {
	return &MongoRecords{coll: coll}
}

// EnsureIndexes creates the necessary indexes (unique key + TTL).
func (m *MongoRecords) EnsureIndexes(ctx context.Context) error {
	idxs := []mongo.IndexModel{
		{
			Keys:    bson.M{"key": 1},
			Options: options.Index().SetUnique(true).SetName("unique_key"),
		},
		{
			Keys:    bson.M{"expires_at": 1},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	}
	_, err := m.coll.Indexes().CreateMany(ctx, idxs)
	return err
}

func (m *MongoRecords) Insert(ctx context.Context, rec models.IdempotencyRecord) error {
	_, err := m.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

func (m *MongoRecords) Find(ctx context.Context, key string) (models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := m.coll.FindOne(ctx, bson.M{"key": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rec, ErrNoRecord
	}
	return rec, err
}

func (m *MongoRecords) SaveResponse(ctx context.Context, key string, resp models.IdempotentResponse) error {
	_, err := m.coll.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"response": resp}})
	return err
}

func (m *MongoRecords) Delete(ctx context.Context, key string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"key": key})
	return err
}

// MemoryRecords is an in-process Records.
type MemoryRecords struct {
	mu   sync.Mutex
	recs map[string]models.IdempotencyRecord
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{recs: make(map[string]models.IdempotencyRecord)}
}

func (m *MemoryRecords) Insert(_ context.Context, rec models.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.recs[rec.Key]; ok && time.Now().Before(existing.ExpiresAt) {
		return ErrDuplicateKey
	}
	m.recs[rec.Key] = rec
	return nil
}

func (m *MemoryRecords) Find(_ context.Context, key string) (models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return rec, ErrNoRecord
	}
	return rec, nil
}

func (m *MemoryRecords) SaveResponse(_ context.Context, key string, resp models.IdempotentResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return ErrNoRecord
	}
	rec.Response = &resp
	m.recs[key] = rec
	return nil
}

func (m *MemoryRecords) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureResponseWriter wraps http.ResponseWriter to capture status and body.
type CaptureResponseWriter struct {
	w           http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{w: w, statusCode: http.StatusOK}
}

func (c *CaptureResponseWriter) Header() http.Header {
	return c.w.Header()
}

func (c *CaptureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.w.WriteHeader(statusCode)
		c.wroteHeader = true
	}
}

func (c *CaptureResponseWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.buf.Write(b)
	return c.w.Write(b)
}

// Idempotent makes a mutating endpoint safe to replay when the client sends
// an Idempotency-Key header.
//   - no header: pass-through.
//   - first use of a key: run the handler; a 2xx response is stored, anything
//     else (or a panic) releases the key so the client can try again.
//   - reuse with a different body: 409.
//   - reuse while the first request is still running: 409, unless the record is
//     older than inProgressTimeout, in which case the new request takes it over.
//   - reuse after success: replay the stored response without running the handler.
//
// Keys are scoped per user.
func Idempotent(records Records) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next(w, r, ps)
				return
			}

			userID := utils.GetUserIDFromRequest(r)
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			ctx := r.Context()
			scoped := userID + ":" + key
			reqHash := computeRequestHash(r, bodyBytes, userID)
			now := time.Now()
			rec := models.IdempotencyRecord{
				Key:         scoped,
				Method:      r.Method,
				Path:        r.URL.Path,
				UserID:      userID,
				RequestHash: reqHash,
				CreatedAt:   now,
				ExpiresAt:   now.Add(recordTTL),
			}

			err = records.Insert(ctx, rec)
			if errors.Is(err, ErrDuplicateKey) {
				existing, ferr := records.Find(ctx, scoped)
				if ferr != nil {
					zap.L().Error("load idempotency record", zap.String("key", scoped), zap.Error(ferr))
					utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
					return
				}

				switch {
				case existing.Response == nil && now.Sub(existing.CreatedAt) > inProgressTimeout:
					// the first request died without finishing
					zap.L().Warn("taking over stale idempotency record", zap.String("key", scoped))
					if derr := records.Delete(ctx, scoped); derr != nil {
						zap.L().Error("delete stale idempotency record", zap.String("key", scoped), zap.Error(derr))
						utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
						return
					}
					err = records.Insert(ctx, rec)
					if errors.Is(err, ErrDuplicateKey) {
						utils.RespondWithError(w, http.StatusConflict, "request with this Idempotency-Key is still in progress")
						return
					}

				case existing.RequestHash != reqHash:
					utils.RespondWithError(w, http.StatusConflict, "Idempotency-Key reused with a different request")
					return

				case existing.Response == nil:
					utils.RespondWithError(w, http.StatusConflict, "request with this Idempotency-Key is still in progress")
					return

				default:
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(existing.Response.Status)
					w.Write(existing.Response.Body)
					return
				}
			}
			if err != nil {
				zap.L().Error("insert idempotency record", zap.String("key", scoped), zap.Error(err))
				utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
				return
			}

			run(records, scoped, next, w, r, ps)
		}
	}
}

// run executes next for a freshly claimed key and settles the record.
func run(records Records, scoped string, next httprouter.Handle, w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// the request context may already be cancelled once the client has its answer
	settle := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	}
	release := func() {
		ctx, cancel := settle()
		defer cancel()
		if err := records.Delete(ctx, scoped); err != nil {
			zap.L().Error("release idempotency key", zap.String("key", scoped), zap.Error(err))
		}
	}

	finished := false
	defer func() {
		if !finished {
			release()
		}
	}()

	crw := NewCaptureResponseWriter(w)
	next(crw, r, ps)
	finished = true

	if crw.statusCode < 200 || crw.statusCode > 299 {
		release()
		return
	}
	ctx, cancel := settle()
	defer cancel()
	resp := models.IdempotentResponse{Status: crw.statusCode, Body: crw.buf.Bytes()}
	if err := records.SaveResponse(ctx, scoped, resp); err != nil {
		zap.L().Error("store idempotent response", zap.String("key", scoped), zap.Error(err))
	}
}
