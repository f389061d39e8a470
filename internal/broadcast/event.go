package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type Type string

const (
	TypeUpsert Type = "upsert"
	TypeDelete Type = "delete"
)

// EventName is what SSE clients listen for.
const EventName = "stock:update"

// Event is one store-scoped stock change. Upserts carry the whole product
// projection; deletes only the id.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	StoreID    string          `json:"storeId"`
	Product    *inventory.View `json:"product,omitempty"`
	ProductID  string          `json:"productId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`

	// span is the trace the change happened in. It stays in process; sinks
	// see it on their ctx and carry it in transport headers.
	span trace.SpanContext
}

// within tags ev with the span active in ctx, if any.
func within(ctx context.Context, ev Event) Event {
	ev.span = trace.SpanContextFromContext(ctx)
	return ev
}

func Upsert(p inventory.Product) Event {
	v := p.View()
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeUpsert,
		StoreID:    p.StoreID,
		Product:    &v,
		ProductID:  p.ID,
		OccurredAt: time.Now().UTC(),
	}
}

func Delete(storeID, productID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeDelete,
		StoreID:    storeID,
		ProductID:  productID,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the product the event is about.
func (e Event) Key() string {
	if e.Product != nil {
		return e.Product.ID
	}
	return e.ProductID
}

func (e Event) Validate() error {
	switch {
	case e.StoreID == "":
		return fmt.Errorf("event %s: missing storeId", e.ID)
	case e.Type == TypeUpsert && e.Product == nil:
		return fmt.Errorf("event %s: upsert without product", e.ID)
	case e.Type == TypeDelete && e.ProductID == "":
		return fmt.Errorf("event %s: delete without productId", e.ID)
	case e.Type != TypeUpsert && e.Type != TypeDelete:
		return fmt.Errorf("event %s: unknown type %q", e.ID, e.Type)
	}
	return nil
}

func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, e.Validate()
}
