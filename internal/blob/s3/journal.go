package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// receipt is the archived JSON document for one submitted order.
type receipt struct {
	ID         string             `json:"id"`
	Order      domain.SignedOrder `json:"order"`
	Result     domain.OrderResult `json:"result"`
	CreatedAt  time.Time          `json:"createdAt"`
	ArchivedAt time.Time          `json:"archivedAt"`
}

// Journal implements domain.OrderJournal by writing one JSON receipt per
// order under <prefix>/orders/YYYY/MM/DD/<id>.json.
type Journal struct {
	writer domain.BlobWriter
	prefix string
	now    func() time.Time
}

// NewJournal creates a Journal writing through w.
func NewJournal(w domain.BlobWriter, prefix string) *Journal {
	return &Journal{writer: w, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// Key returns the object path for rec.
func (j *Journal) Key(rec domain.OrderRecord) string {
	day := rec.CreatedAt.UTC().Format("2006/01/02")
	return path.Join(j.prefix, "orders", day, rec.ID+".json")
}

func (j *Journal) Record(ctx context.Context, rec domain.OrderRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("s3blob: journal: %w", domain.InvalidField("id", "must not be empty"))
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = j.now()
	}

	body, err := json.Marshal(receipt{
		ID:         rec.ID,
		Order:      rec.Order,
		Result:     rec.Result,
		CreatedAt:  rec.CreatedAt.UTC(),
		ArchivedAt: j.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("s3blob: marshal receipt %s: %w", rec.ID, err)
	}
	return j.writer.Put(ctx, j.Key(rec), bytes.NewReader(body), "application/json")
}

var _ domain.OrderJournal = (*Journal)(nil)
