package domain

import "context"

// DocumentStore persists the karma document as a whole. Load returns an empty
// document when nothing has been stored yet. Save overwrites the stored
// document completely. Implementations serialize their own single calls but
// give no isolation across a Load/Save pair: concurrent votes may lose updates.
type DocumentStore interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}
