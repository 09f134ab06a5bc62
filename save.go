package gitremap

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// GetHash calculates the hash the object will have once stored, without
// storing it.
func GetHash(obj object.Object) (*plumbing.Hash, error) {
	o := &plumbing.MemoryObject{}
	if err := obj.Encode(o); err != nil {
		return nil, err
	}

	h := o.Hash()

	return &h, nil
}

func updateHashAndSave(ctx context.Context, obj object.Object, s storer.EncodedObjectStorer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	o := s.NewEncodedObject()
	if err := obj.Encode(o); err != nil {
		return err
	}

	if _, err := s.SetEncodedObject(o); err != nil {
		return err
	}

	return nil
}
