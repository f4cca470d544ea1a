package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
)

// notFound synthesizes a gRPC NotFound error so query misses classify the
// same way document misses do.
func notFound(entity string) error {
	return status.Error(codes.NotFound, entity+" not found")
}

// The helpers below route reads and writes through the transaction stored in
// the context, when one is present, so repositories transparently participate
// in a unit of work.

func getDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx := pfirestore.TxFrom(ctx); tx != nil {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

func setDoc(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx := pfirestore.TxFrom(ctx); tx != nil {
		return tx.Set(ref, data)
	}
	_, err := ref.Set(ctx, data)
	return err
}

func createDoc(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx := pfirestore.TxFrom(ctx); tx != nil {
		return tx.Create(ref, data)
	}
	_, err := ref.Create(ctx, data)
	return err
}

func updateDoc(ctx context.Context, ref *firestore.DocumentRef, updates []firestore.Update) error {
	if tx := pfirestore.TxFrom(ctx); tx != nil {
		return tx.Update(ref, updates)
	}
	_, err := ref.Update(ctx, updates)
	return err
}

func deleteDoc(ctx context.Context, ref *firestore.DocumentRef) error {
	if tx := pfirestore.TxFrom(ctx); tx != nil {
		return tx.Delete(ref)
	}
	_, err := ref.Delete(ctx)
	return err
}
