package builder

import (
	"cloud.google.com/go/firestore"

	"github.com/shouni/go-carousel-kit/internal/config"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、プロジェクトIDなど）。
	Options config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です（件数、並行度、モデル名など）。
	Writer  remoteio.OutputWriter  // Writerは、スライド画像をオブジェクトストアへ退避するための出力先です。

	aiClient   gemini.GenerativeModel  // aiClient はGeminiの通信に使う共通クライアント
	httpClient httpkit.ClientInterface // httpClient は外部APIとの通信に使う共通クライアント
	fsClient   *firestore.Client       // fsClient は共有ストア（ソース・ボイス・公開先）への窓口
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.ClientInterface,
	aiClient gemini.GenerativeModel,
	fsClient *firestore.Client,
	writer remoteio.OutputWriter,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		aiClient:   aiClient,
		httpClient: httpClient,
		fsClient:   fsClient,
		Writer:     writer,
	}
}
