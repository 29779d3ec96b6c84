package storefrontd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketIdempotency = []byte("idempotency")

// IdempotencyRecord is a cached response for one (caller, key) pair.
type IdempotencyRecord struct {
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"storedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// IdempotencyStore persists responses in bbolt so retried mutations replay
// the first outcome instead of minting twice.
type IdempotencyStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// OpenIdempotencyStore opens (and creates) the bbolt file at path.
func OpenIdempotencyStore(path string, ttl time.Duration) (*IdempotencyStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdempotency)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Close releases the database handle.
func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the live record for key. Expired records are reported missing.
func (s *IdempotencyStore) Get(key string) (*IdempotencyRecord, bool, error) {
	var rec IdempotencyRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketIdempotency).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil || !found {
		return nil, false, err
	}
	if !rec.ExpiresAt.IsZero() && s.now().After(rec.ExpiresAt) {
		return nil, false, nil
	}
	return &rec, true, nil
}

// Put stores rec under key, stamping its expiry.
func (s *IdempotencyStore) Put(key string, rec IdempotencyRecord) error {
	rec.StoredAt = s.now()
	if s.ttl > 0 {
		rec.ExpiresAt = rec.StoredAt.Add(s.ttl)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdempotency).Put([]byte(key), payload)
	})
}

// Prune deletes expired records and reports how many were removed.
func (s *IdempotencyStore) Prune() (int, error) {
	now := s.now()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var rec IdempotencyRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !rec.ExpiresAt.IsZero() && now.After(rec.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

var errIdempotencyMismatch = errors.New("idempotency key reused for a different request")

// WithIdempotency replays the stored response when a request repeats an
// Idempotency-Key. Keys are scoped to the authenticated caller.
func (s *IdempotencyStore) WithIdempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" || s == nil {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := currentCaller(r.Context())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		scoped := string(caller[:]) + "/" + key
		rec, ok, err := s.Get(scoped)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
			return
		}
		if ok {
			if rec.Method != r.Method || rec.Path != r.URL.Path {
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: errIdempotencyMismatch.Error()})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status >= 500 {
			return
		}
		_ = s.Put(scoped, IdempotencyRecord{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: recorder.status,
			Body:       recorder.buf.Bytes(),
		})
	})
}

type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
