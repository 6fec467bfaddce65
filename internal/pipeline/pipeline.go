package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/shouni/go-carousel-kit/internal/artifact"
	"github.com/shouni/go-carousel-kit/internal/builder"
	"github.com/shouni/go-carousel-kit/internal/config"
	"github.com/shouni/go-carousel-kit/pkg/domain"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
)

// ExecuteGenerate は、ソース投稿の取得からアーティファクト書き出しまでの
// 生成フェーズ（Phase 1 & 2）を実行するのだ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	batchRunner, err := builder.BuildBatchRunner(appCtx)
	if err != nil {
		return fmt.Errorf("生成ドライバーの構築に失敗したのだ: %w", err)
	}

	carousels, err := batchRunner.RunBatch(ctx, cfg.Options.Count, cfg.Options.Concurrency)
	if err != nil {
		return err
	}
	if len(carousels) == 0 {
		// 全ユニット失敗ならアーティファクトは作らないのだ。公開フェーズに
		// 空ファイルを流さないためなのだ。
		return fmt.Errorf("カルーセルを1件も生成できなかったのだ")
	}

	arts := artifact.NewStore(cfg.Options.ArtifactDir)
	name, err := arts.Write(domain.Artifact{
		GeneratedAt: time.Now(),
		Carousels:   carousels,
	})
	if err != nil {
		return fmt.Errorf("アーティファクトの書き出しに失敗したのだ: %w", err)
	}

	// 使用済みマーキングは成果物の保存が終わってからなのだ。ここで失敗しても
	// 成果物は残っているので、警告に留めて成功扱いにするのだ。
	usedIDs := collectSourceIDs(carousels)
	if len(usedIDs) > 0 {
		if err := builder.BuildSourceClient(appCtx).MarkUsed(ctx, usedIDs); err != nil {
			slog.Warn("ソース投稿の使用済みマーキングに失敗したのだ", "error", err)
		}
	}

	slog.Info("生成フェーズが完了したのだ！",
		"artifact", name,
		"units", len(carousels),
		"requested", cfg.Options.Count)
	return nil
}

// ExecutePublish は、未処理アーティファクトを共有ストアへ書き込む
// 公開フェーズ（Phase 3）を実行するのだ。
func ExecutePublish(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupPublishContext(ctx, cfg)
	if err != nil {
		return err
	}

	publishRunner, err := builder.BuildPublishRunner(appCtx)
	if err != nil {
		return fmt.Errorf("公開ランナーの構築に失敗したのだ: %w", err)
	}

	summary, err := publishRunner.PublishPending(ctx)
	if err != nil {
		return fmt.Errorf("公開処理に失敗したのだ: %w", err)
	}

	if summary.HasErrors() {
		// 部分的な失敗は処理を止めないが、終了コードには反映するのだ
		return fmt.Errorf("公開処理で %d 件のユニット失敗、%d 件のアーティファクトが未処理のまま残ったのだ",
			summary.ErrorCount, summary.ArtifactsFailed)
	}

	slog.Info("公開フェーズが完了したのだ！",
		"published", summary.PublishedCount,
		"artifacts", summary.ArtifactsProcessed)
	return nil
}

// setupAppContext は、生成フェーズに必要な共有コンポーネントを初期化するのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	httpClient := httpkit.New(cfg.Options.HTTPTimeout)
	aiClient, err := builder.InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	appCtx := builder.NewAppContext(cfg, httpClient, aiClient, fsClient, nil)
	return &appCtx, nil
}

// setupPublishContext は、公開フェーズ用にオブジェクトストアの出力先まで
// 初期化するのだ。AIクライアントは公開では使わないので作らないのだ。
func setupPublishContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, nil, nil, fsClient, writer)
	return &appCtx, nil
}

// collectSourceIDs は、生成に使われたソース投稿IDを重複なしで集めるのだ。
func collectSourceIDs(carousels []domain.Carousel) []string {
	var all []string
	for _, c := range carousels {
		all = append(all, c.SourcePostIDs...)
	}
	return domain.DedupeSourcePostIDs(all, 0)
}
