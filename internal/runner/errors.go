package runner

import "errors"

// 障害はどれも発生箇所の最小スコープで握ってカウンターに変換するのだ。
// 実行全体を止めてよいのはアーティファクト一覧の取得失敗だけなのだ。
var (
	// ErrGeneration は、段階的なモデル呼び出しが解析不能・欠損データを返したのだ。
	// そのユニットだけが失敗し、兄弟ユニットには影響しないのだ。
	ErrGeneration = errors.New("生成モデルの応答を解析できなかったのだ")

	// ErrInvalidUnit は、アーティファクトから読んだユニットが必須フィールドを
	// 欠いていたのだ。そのユニットだけスキップしてカウントするのだ。
	ErrInvalidUnit = errors.New("公開要件を満たさないユニットなのだ")
)
