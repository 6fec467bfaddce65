package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-carousel-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は、コマンドラインフラグの束ね先なのだ。各サブコマンドの RunE が
// config.LoadConfig の結果に合流させるのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 生成制御 ---
	rootCmd.PersistentFlags().IntVarP(&opts.Count, "count", "n", config.DefaultCount, "生成するカルーセルの件数なのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.Concurrency, "concurrency", "c", config.DefaultConcurrency, "同時に生成する最大ユニット数なのだ。")

	// --- 出力先 ---
	rootCmd.PersistentFlags().StringVar(&opts.ArtifactDir, "artifact-dir", config.DefaultArtifactDir, "中間アーティファクトの置き場なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.ImageDir, "image-dir", "i", config.DefaultImageDir, "スライド画像の保存先（ローカル or gs://...）なのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", config.DefaultModel, "テキスト生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "外部APIリクエストのタイムアウトなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// 共有ストアへの接続にプロジェクトIDが要るのだ
	if os.Getenv("PROJECT_ID") == "" {
		return fmt.Errorf("エラー: 環境変数 PROJECT_ID が設定されていません。共有ストアへの接続には必須なのだ")
	}

	// 公開だけならAIキーは不要だけど、生成系コマンドでは欠かせないのだ
	if cmd.Name() != "publish" && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"carousel-kit",
		addAppFlags,
		preRunAppE,
		generateCmd,
		publishCmd,
	)
}
