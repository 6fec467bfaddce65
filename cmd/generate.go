package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-carousel-kit/internal/config"
	"github.com/shouni/go-carousel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、ソース投稿からカルーセル一式を生成してアーティファクトに書き出すのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIにカルーセル構成案とスライド画像を生成させますなのだ。",
	Long: `共有ストアの未使用ソース投稿を解析し、問い・ボイス・ビジュアル設計を
段階的に合成してスライド画像まで生成するのだ。
出力はアーティファクトJSON（publish コマンドの入力）になるのだよ。`,
	RunE: generateCommand,
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.Count <= 0 {
		return fmt.Errorf("--count は1以上を指定してほしいのだ")
	}

	// 環境変数等から基本設定をロードして、フラグで上書きするのだ
	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts

	slog.Info("カルーセル生成パイプラインを起動するのだ！",
		"count", opts.Count,
		"concurrency", opts.Concurrency,
		"text_model", cfg.GeminiModel,
		"image_model", cfg.GeminiImageModel,
		"artifact_dir", opts.ArtifactDir)

	if err := pipeline.ExecuteGenerate(ctx, cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
