package cmd

import (
	"log/slog"

	"github.com/shouni/go-carousel-kit/internal/config"
	"github.com/shouni/go-carousel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// publishCmd は、未処理アーティファクトを共有ストアへバッチ書き込みするのだ。
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "生成済みアーティファクトを共有ストアへ公開しますなのだ。",
	Long: `アーティファクト置き場の未処理JSONを順に読み、スライド画像を
オブジェクトストアへ退避してから、カルーセル本体・ソース投稿の公開印・
ボイス使用カウントをサイズ上限付きのアトミックバッチで書き込むのだ。
全バッチが成功したアーティファクトだけが処理済みにリネームされるのだよ。`,
	RunE: publishCommand,
}

func publishCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("公開パイプラインを起動するのだ！",
		"artifact_dir", opts.ArtifactDir,
		"image_dir", opts.ImageDir)

	// 部分的な失敗も終了コードに反映させたいので、そのまま返すのだ
	return pipeline.ExecutePublish(ctx, cfg)
}
