package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-carousel-kit/internal/config"
	"github.com/shouni/go-carousel-kit/internal/sources"
	"github.com/shouni/go-carousel-kit/pkg/domain"

	"golang.org/x/sync/errgroup"
)

// CarouselBatchRunner は、ユニット横断の並行度を制御する生成ドライバーなのだ。
// グループ内は全並列、グループ間はバリア待ちで、外部APIへの同時負荷を
// concurrency に抑えるのだ。
type CarouselBatchRunner struct {
	synthesis SynthesisRunner
	images    ImageRunner
	sources   sources.Client
	now       func() time.Time
}

// NewCarouselBatchRunner は、依存を注入して生成ドライバーを返すのだ。
func NewCarouselBatchRunner(synthesis SynthesisRunner, images ImageRunner, src sources.Client) *CarouselBatchRunner {
	return &CarouselBatchRunner{
		synthesis: synthesis,
		images:    images,
		sources:   src,
		now:       time.Now,
	}
}

// RunBatch は targetCount 件のカルーセル生成を試み、成功分だけを穴なしで返すのだ。
// 失敗ユニットはログとカウントに変換され、兄弟ユニットには影響しないのだ。
func (br *CarouselBatchRunner) RunBatch(ctx context.Context, targetCount, concurrency int) ([]domain.Carousel, error) {
	if targetCount <= 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	posts, err := br.sources.FetchPending(ctx, config.MaxDigestPosts)
	if err != nil {
		return nil, fmt.Errorf("ソース投稿の取得に失敗したのだ: %w", err)
	}

	results := make([]*domain.Carousel, targetCount)

	// targetCount を min(concurrency, 残り) のグループに分割して、
	// グループ全体の完了を待ってから次に進むのだ
	for start := 0; start < targetCount; start += concurrency {
		end := start + concurrency
		if end > targetCount {
			end = targetCount
		}
		slog.Info("生成グループを開始するのだ", "from", start+1, "to", end, "total", targetCount)

		eg, egCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			eg.Go(func() error {
				carousel, err := br.generateOne(egCtx, posts)
				if err != nil {
					// 1ユニットの失敗はそのユニットだけのものなのだ
					slog.Error("ユニット生成に失敗したのだ", "unit", i+1, "error", err)
					return nil
				}
				results[i] = carousel
				return nil
			})
		}
		_ = eg.Wait()
	}

	// 成功分を前に詰めるのだ（欠番は作らないのだ）
	carousels := make([]domain.Carousel, 0, targetCount)
	for _, c := range results {
		if c != nil {
			carousels = append(carousels, *c)
		}
	}

	slog.Info("生成バッチが完了したのだ",
		"requested", targetCount,
		"succeeded", len(carousels),
		"failed", targetCount-len(carousels))
	return carousels, nil
}

// generateOne は、合成 → 画像並列生成 → 組み立てで1ユニットを作るのだ。
func (br *CarouselBatchRunner) generateOne(ctx context.Context, posts []domain.SourcePost) (*domain.Carousel, error) {
	syn, err := br.synthesis.Run(ctx, posts)
	if err != nil {
		return nil, err
	}

	slides := br.images.Run(ctx, syn.HeaderPrompt, syn.Plan.SlidePrompts)

	carousel := &domain.Carousel{
		SourceQuestion: syn.Extraction.Question,
		Context:        syn.Extraction.Context,
		Themes:         syn.Extraction.Themes,
		Keywords:       syn.Extraction.Keywords,
		Slides:         slides,
		VoiceID:        syn.Voice.ID,
		VoiceName:      syn.Voice.Name,
		VoiceAvatarURL: syn.Voice.AvatarURL,
		SourcePostIDs:  domain.DedupeSourcePostIDs(syn.Extraction.SourcePostIDs, domain.MaxSourcePosts),
		Status:         domain.StatusDraft,
		Style:          syn.Plan.CarouselStyle,
		TargetAudience: syn.Plan.TargetAudience,
		GeneratedAt:    br.now(),
	}
	return carousel, nil
}
