package store

import "context"

// BatchStore は、公開先となる共有ストアの最小の契約なのだ。
// 実体は Firestore だけれど、テストからフェイクを差し込めるように
// ここでインターフェースに切り出しておくのだよ。
type BatchStore interface {
	// NewBatch は空のアトミックな書き込みバッチを開くのだ。
	NewBatch() WriteBatch
}

// WriteBatch は、全成功か全失敗かのどちらかになる書き込み操作のグループなのだ。
// 1バッチに積める操作数の上限管理は呼び出し側（公開処理）の責務なのだ。
type WriteBatch interface {
	// Create は自動採番IDで新規ドキュメントを積むのだ。
	Create(collection string, data any)

	// MergeSet は既存IDに対するマージ更新（無ければ作成）を積むのだ。
	MergeSet(collection, id string, data map[string]any)

	// Increment は数値フィールドのアトミックな加算を積むのだ。
	Increment(collection, id, field string, delta int64)

	// Len は現在積まれている操作数を返すのだ。
	Len() int

	// Commit はバッチ全体をひとつのコミットとして確定するのだ。
	Commit(ctx context.Context) error
}
