package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/go-carousel-kit/internal/artifact"
	"github.com/shouni/go-carousel-kit/internal/config"
	"github.com/shouni/go-carousel-kit/internal/prompt"
	"github.com/shouni/go-carousel-kit/internal/runner"
	"github.com/shouni/go-carousel-kit/internal/sources"
	"github.com/shouni/go-carousel-kit/internal/store"
	"github.com/shouni/go-carousel-kit/internal/upload"
	"github.com/shouni/go-carousel-kit/internal/voices"

	"github.com/patrickmn/go-cache"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"google.golang.org/genai"
)

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.2)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// geminiTextAdapter は、go-ai-client のクライアントをテキスト生成の契約に
// 合わせる薄いアダプターなのだ。
type geminiTextAdapter struct {
	ai gemini.GenerativeModel
}

func (a *geminiTextAdapter) GenerateText(ctx context.Context, promptText, model string) (string, error) {
	resp, err := a.ai.GenerateContent(ctx, promptText, model)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// qualityImageClient は、品質ヒントに応じてモデル違いの2つのジェネレーターを
// 使い分けるアダプターなのだ。gemini-image-kit はモデルを構築時に固定するので、
// ヘッダー用（高品質）と本文用（標準）を別々に持つのだ。
type qualityImageClient struct {
	high     generator.ImageGenerator
	standard generator.ImageGenerator
}

func (c *qualityImageClient) GenerateImage(ctx context.Context, req runner.ImageRequest) (*runner.ImageResult, error) {
	gen := c.standard
	if req.Quality == runner.QualityHigh {
		gen = c.high
	}

	resp, err := gen.GenerateMangaPanel(ctx, imagedom.ImageGenerationRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		return nil, err
	}
	return &runner.ImageResult{Data: resp.Data, MimeType: resp.MimeType}, nil
}

// initializeImageGenerator は、指定モデルの ImageGenerator を初期化します。
// 画像キャッシュは呼び出し側から渡して、モデル違いのジェネレーター間で共有するのだ。
func initializeImageGenerator(appCtx *AppContext, imgCache *cache.Cache, model string) (generator.ImageGenerator, error) {
	cacheTTL := 1 * time.Hour

	core, err := generator.NewGeminiImageCore(
		appCtx.httpClient,
		imgCache,
		cacheTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCoreの初期化に失敗したのだ: %w", err)
	}

	imgGen, err := generator.NewGeminiGenerator(
		core,
		appCtx.aiClient,
		model,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiGeneratorの初期化に失敗したのだ: %w", err)
	}

	return imgGen, nil
}

// BuildSynthesisRunner は、問い抽出からビジュアル設計までを担当する Runner を構築します。
func BuildSynthesisRunner(appCtx *AppContext) (runner.SynthesisRunner, error) {
	prompts, err := prompt.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("プロンプトビルダーの初期化に失敗したのだ: %w", err)
	}

	selector := voices.NewRankedSelector(
		voices.NewFirestoreLoader(appCtx.fsClient, config.CollectionVoices),
	)

	return runner.NewCarouselSynthesisRunner(
		&geminiTextAdapter{ai: appCtx.aiClient},
		selector,
		prompts,
		appCtx.Options.AIModel,
		appCtx.Config.ImagePromptSuffix,
		config.DefaultAspectRatio,
	), nil
}

// BuildImageRunner はスライド画像の並列生成を担当する Runner を構築します。
func BuildImageRunner(appCtx *AppContext) (runner.ImageRunner, error) {
	imgCache := cache.New(30*time.Minute, 1*time.Hour)

	highGen, err := initializeImageGenerator(appCtx, imgCache, appCtx.Options.ImageModel)
	if err != nil {
		return nil, fmt.Errorf("高品質ジェネレーターの初期化に失敗したのだ: %w", err)
	}
	standardGen, err := initializeImageGenerator(appCtx, imgCache, appCtx.Config.GeminiImageFast)
	if err != nil {
		return nil, fmt.Errorf("標準ジェネレーターの初期化に失敗したのだ: %w", err)
	}

	client := &qualityImageClient{high: highGen, standard: standardGen}
	return runner.NewSlideImageRunner(client, config.DefaultRateLimit, config.DefaultAspectRatio), nil
}

// BuildBatchRunner は、カルーセル一括生成のドライバーを構築します。
func BuildBatchRunner(appCtx *AppContext) (*runner.CarouselBatchRunner, error) {
	synthesis, err := BuildSynthesisRunner(appCtx)
	if err != nil {
		return nil, err
	}
	images, err := BuildImageRunner(appCtx)
	if err != nil {
		return nil, err
	}

	src := sources.NewFirestoreClient(appCtx.fsClient, config.CollectionSources)
	return runner.NewCarouselBatchRunner(synthesis, images, src), nil
}

// BuildPublishRunner は、アーティファクトを共有ストアへ書き込む公開ランナーを構築します。
func BuildPublishRunner(appCtx *AppContext) (*runner.ArtifactPublishRunner, error) {
	arts := artifact.NewStore(appCtx.Options.ArtifactDir)
	batchStore := store.NewFirestoreStore(appCtx.fsClient)
	uploader := upload.NewRemoteUploader(appCtx.Writer, appCtx.Options.ImageDir)

	return runner.NewArtifactPublishRunner(
		arts,
		batchStore,
		uploader,
		config.MaxBatchOps,
		config.CollectionCarousels,
		config.CollectionSources,
		config.CollectionVoices,
	), nil
}

// BuildSourceClient は、生成後の使用済みマーキングに使うソースクライアントを返します。
func BuildSourceClient(appCtx *AppContext) sources.Client {
	return sources.NewFirestoreClient(appCtx.fsClient, config.CollectionSources)
}
