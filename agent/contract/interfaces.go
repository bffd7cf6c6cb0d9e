package contract

import (
	"context"

	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
}

// Responder turns shared memory plus the current message into a draft.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) (ResponderResponse, error)
}

type CatalogAgent interface {
	Handle(ctx context.Context, req CatalogRequest) (CatalogResponse, error)
}

// Merger produces the customer-facing reply from a draft.
type Merger interface {
	Merge(ctx context.Context, req MergeRequest) (string, error)
}

type Registry interface {
	Classifier() Classifier
	Responder(intent Intent) (Responder, bool)
	Merger() Merger
}

// CatalogStore is the read side of the product cache.
type CatalogStore interface {
	List(ctx context.Context) (map[statex.RowID]string, error)
	Fields(ctx context.Context, row statex.RowID, names []string) (map[string]string, error)
}
