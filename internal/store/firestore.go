package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// FirestoreStore は BatchStore の Firestore 実装なのだ。
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore は Firestore クライアントを包んで返すのだ。
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// NewBatch は Firestore の WriteBatch を包んだバッチを開くのだ。
func (s *FirestoreStore) NewBatch() WriteBatch {
	return &firestoreBatch{client: s.client, batch: s.client.Batch()}
}

// firestoreBatch は firestore.WriteBatch に操作数カウントを添えたものなのだ。
type firestoreBatch struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
	n      int
}

func (b *firestoreBatch) Create(collection string, data any) {
	ref := b.client.Collection(collection).NewDoc()
	b.batch.Create(ref, data)
	b.n++
}

func (b *firestoreBatch) MergeSet(collection, id string, data map[string]any) {
	ref := b.client.Collection(collection).Doc(id)
	b.batch.Set(ref, data, firestore.MergeAll)
	b.n++
}

func (b *firestoreBatch) Increment(collection, id, field string, delta int64) {
	ref := b.client.Collection(collection).Doc(id)
	b.batch.Update(ref, []firestore.Update{
		{Path: field, Value: firestore.Increment(delta)},
	})
	b.n++
}

func (b *firestoreBatch) Len() int {
	return b.n
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.n == 0 {
		return nil
	}
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("firestoreバッチのコミットに失敗したのだ (ops=%d): %w", b.n, err)
	}
	return nil
}
