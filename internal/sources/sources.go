package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shouni/go-carousel-kit/pkg/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// ErrNoPending は、未使用のソース投稿が1件もないときに返すのだ。
var ErrNoPending = errors.New("未使用のソース投稿が見つからないのだ")

// Client は、カルーセルの材料となる投稿コレクションへの問い合わせ窓口なのだ。
type Client interface {
	// FetchPending は pending 状態の投稿を新しい順に最大 limit 件返すのだ。
	FetchPending(ctx context.Context, limit int) ([]domain.SourcePost, error)

	// MarkUsed は生成に使った投稿を used に更新するのだ。
	MarkUsed(ctx context.Context, ids []string) error
}

// FirestoreClient は Client の Firestore 実装なのだ。
type FirestoreClient struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreClient は投稿コレクション名を固定したクライアントを返すのだ。
func NewFirestoreClient(client *firestore.Client, collection string) *FirestoreClient {
	return &FirestoreClient{client: client, collection: collection}
}

// FetchPending は status==pending の投稿を createdAt 降順で limit 件取得するのだ。
func (c *FirestoreClient) FetchPending(ctx context.Context, limit int) ([]domain.SourcePost, error) {
	iter := c.client.Collection(c.collection).
		Where("status", "==", domain.SourceStatusPending).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var posts []domain.SourcePost
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ソース投稿の取得に失敗したのだ: %w", err)
		}

		var post domain.SourcePost
		if err := doc.DataTo(&post); err != nil {
			return nil, fmt.Errorf("ソース投稿 %s のデコードに失敗したのだ: %w", doc.Ref.ID, err)
		}
		post.ID = doc.Ref.ID
		posts = append(posts, post)
	}

	if len(posts) == 0 {
		return nil, ErrNoPending
	}
	return posts, nil
}

// MarkUsed は使った投稿のステータスをまとめて used にするのだ。
// 件数は高々ダイジェスト上限なので1バッチで足りるのだよ。
func (c *FirestoreClient) MarkUsed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	batch := c.client.Batch()
	now := time.Now()
	for _, id := range ids {
		ref := c.client.Collection(c.collection).Doc(id)
		batch.Set(ref, map[string]any{
			"status": domain.SourceStatusUsed,
			"usedAt": now,
		}, firestore.MergeAll)
	}

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("ソース投稿の使用済み更新に失敗したのだ: %w", err)
	}
	return nil
}
