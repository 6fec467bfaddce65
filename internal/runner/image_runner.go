package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-carousel-kit/pkg/domain"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ImageRunner は、1ユニット分のスライド画像を並列生成する契約なのだ。
// ステージ全体としては決して失敗せず、個々の失敗は画像なしスライドになるのだ。
type ImageRunner interface {
	Run(ctx context.Context, headerPrompt string, supporting []domain.SlidePrompt) []domain.Slide
}

// SlideImageRunner は、レートリミット付きの並列フェイルソフト実装なのだ。
type SlideImageRunner struct {
	client   ImageClient
	interval time.Duration // リクエスト間の最小間隔
	aspect   string
}

// NewSlideImageRunner は、SlideImageRunnerの新しいインスタンスを生成して返すのだ。
func NewSlideImageRunner(client ImageClient, interval time.Duration, aspect string) *SlideImageRunner {
	return &SlideImageRunner{
		client:   client,
		interval: interval,
		aspect:   aspect,
	}
}

// imageTask は1枚分の生成タスクなのだ。ヘッダーだけ高品質を要求するのだ。
type imageTask struct {
	index   int
	kind    string
	prompt  string
	quality string
}

// Run は全スライドの画像を並列生成するメインロジックなのだ。
// 個々のタスクの失敗はその場で握ってエラー付きスライドに変換するので、
// 兄弟タスクのキャンセルは起きないのだ。
func (ir *SlideImageRunner) Run(ctx context.Context, headerPrompt string, supporting []domain.SlidePrompt) []domain.Slide {
	tasks := make([]imageTask, 0, 1+len(supporting))
	tasks = append(tasks, imageTask{
		index:   1,
		kind:    domain.SlideKindHeader,
		prompt:  headerPrompt,
		quality: QualityHigh,
	})
	for _, sp := range supporting {
		tasks = append(tasks, imageTask{
			index:   sp.SlideNumber,
			kind:    slideKind(sp.Type),
			prompt:  sp.ImagePrompt,
			quality: QualityStandard,
		})
	}

	slides := make([]domain.Slide, len(tasks))
	eg, egCtx := errgroup.WithContext(ctx)

	// Burst 2 により、開始直後に2枚までは同時にリクエストを開始できるのだ
	limiter := rate.NewLimiter(rate.Every(ir.interval), 2)
	slog.Info("並列画像生成を開始するのだ", "count", len(tasks), "interval", ir.interval)

	for i, task := range tasks {
		i, task := i, task // ゴルーチンのクロージャ対策なのだ

		eg.Go(func() error {
			// 1. レートリミットに従って、自分の番が来るまで待機するのだ
			if err := limiter.Wait(egCtx); err != nil {
				slides[i] = domain.NewFailedSlide(task.index, task.kind, task.prompt, err)
				return nil
			}

			// 2. アダプターを介してAIに画像生成を依頼するのだ
			resp, err := ir.client.GenerateImage(egCtx, ImageRequest{
				Prompt:      task.prompt,
				AspectRatio: ir.aspect,
				Quality:     task.quality,
			})
			if err != nil {
				// 失敗はこのスライドだけの問題なのだ。枠は残して中身を空にするのだ。
				slog.Warn("スライド画像の生成に失敗したのだ", "slide", task.index, "error", err)
				slides[i] = domain.NewFailedSlide(task.index, task.kind, task.prompt,
					fmt.Errorf("画像生成に失敗したのだ: %w", err))
				return nil
			}

			slides[i] = domain.NewImageSlide(task.index, task.kind, task.prompt, resp.Data, resp.MimeType)
			return nil
		})
	}

	// タスクはエラーを返さないので Wait は必ず成功するのだ
	_ = eg.Wait()

	// 並列完了で失われた決定的な順序をここで復元するのだ
	domain.SortSlides(slides)

	ok, failed := 0, 0
	for _, s := range slides {
		if s.ImagePresent {
			ok++
		} else {
			failed++
		}
	}
	slog.Info("画像生成が完了したのだ", "success", ok, "failed", failed)

	return slides
}

// slideKind は、モデルが返した種別表記をドメインの種別に寄せるのだ。
func slideKind(t string) string {
	switch t {
	case domain.SlideKindMeme:
		return domain.SlideKindMeme
	case domain.SlideKindDiagram:
		return domain.SlideKindDiagram
	default:
		return domain.SlideKindPerspective
	}
}
