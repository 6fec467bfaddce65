package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-carousel-kit/internal/artifact"
	"github.com/shouni/go-carousel-kit/internal/store"
	"github.com/shouni/go-carousel-kit/internal/upload"
	"github.com/shouni/go-carousel-kit/pkg/domain"
)

// PublishSummary は1回の公開実行の集計なのだ。
type PublishSummary struct {
	PublishedCount     int // 公開できたユニット数
	ErrorCount         int // 失敗・スキップしたユニット数
	ArtifactsProcessed int // 処理済みにできたアーティファクト数
	ArtifactsFailed    int // パース不能 or コミット失敗で未処理のまま残した数
}

// HasErrors は終了コードを非ゼロにすべきかを返すのだ。
func (s PublishSummary) HasErrors() bool {
	return s.ErrorCount > 0 || s.ArtifactsFailed > 0
}

// ArtifactPublishRunner は、未処理アーティファクトを共有ストアへ
// サイズ上限付きバッチで書き込む公開ランナーなのだ。
//
// 冪等性はアーティファクトのリネームマーカーで担保するのだ。全コミットが
// 成功したアーティファクトだけをリネームするので、途中で落ちた場合は次の
// 実行が最初から再処理する（at-least-once）のだ。
type ArtifactPublishRunner struct {
	artifacts *artifact.Store
	store     store.BatchStore
	uploader  upload.Uploader
	maxOps    int

	collCarousels string
	collSources   string
	collVoices    string

	now func() time.Time
}

// NewArtifactPublishRunner は、依存を注入して公開ランナーを返すのだ。
func NewArtifactPublishRunner(
	artifacts *artifact.Store,
	batchStore store.BatchStore,
	uploader upload.Uploader,
	maxOps int,
	collCarousels, collSources, collVoices string,
) *ArtifactPublishRunner {
	return &ArtifactPublishRunner{
		artifacts:     artifacts,
		store:         batchStore,
		uploader:      uploader,
		maxOps:        maxOps,
		collCarousels: collCarousels,
		collSources:   collSources,
		collVoices:    collVoices,
		now:           time.Now,
	}
}

// PublishPending は、未処理アーティファクトを順に処理して集計を返すのだ。
// 一覧の取得失敗だけが実行全体のエラーで、それ以外はカウンターに変換するのだ。
func (pr *ArtifactPublishRunner) PublishPending(ctx context.Context) (PublishSummary, error) {
	var summary PublishSummary

	names, err := pr.artifacts.ListPending()
	if err != nil {
		return summary, err
	}
	if len(names) == 0 {
		slog.Info("未処理のアーティファクトは無いのだ")
		return summary, nil
	}

	for _, name := range names {
		published, failed, ok := pr.publishArtifact(ctx, name)
		summary.PublishedCount += published
		summary.ErrorCount += failed
		if ok {
			summary.ArtifactsProcessed++
		} else {
			summary.ArtifactsFailed++
		}
	}

	slog.Info("公開処理が完了したのだ",
		"published", summary.PublishedCount,
		"errors", summary.ErrorCount,
		"artifacts_processed", summary.ArtifactsProcessed,
		"artifacts_failed", summary.ArtifactsFailed)
	return summary, nil
}

// publishArtifact は1つのアーティファクトを処理するのだ。
// 戻り値 ok は「リネームまで完了したか」なのだ。
func (pr *ArtifactPublishRunner) publishArtifact(ctx context.Context, name string) (published, failed int, ok bool) {
	art, err := pr.artifacts.Read(name)
	if err != nil {
		// パース不能はアーティファクト単位の失敗なのだ。手動調査できるように
		// リネームせずに残すのだ。
		slog.Error("アーティファクトを読めなかったのだ", "artifact", name, "error", err)
		return 0, 1, false
	}

	slog.Info("アーティファクトの公開を開始するのだ", "artifact", name, "units", len(art.Carousels))

	batch := pr.store.NewBatch()
	ops := 0
	pending := 0 // 現在のバッチに積まれた（未確定の）ユニット数
	commitFailed := false

	// ボイスごとの加算は全ユニットを通してメモリ上で合算し、最後に
	// 1ボイス1書き込みにするのだ（初出順を保つのだ）
	voiceDeltas := make(map[string]int64)
	var voiceOrder []string

	flush := func() {
		if err := batch.Commit(ctx); err != nil {
			// コミット失敗は、そのバッチに積まれていた全ユニットに対する
			// 保守的な一括計上なのだ
			slog.Error("バッチコミットに失敗したのだ", "artifact", name, "units", pending, "error", err)
			failed += pending
			commitFailed = true
		} else {
			published += pending
		}
		batch = pr.store.NewBatch()
		ops = 0
		pending = 0
	}

	for i, carousel := range art.Carousels {
		if err := carousel.Validate(); err != nil {
			slog.Warn("公開要件を満たさないユニットをスキップするのだ",
				"artifact", name, "unit", i+1, "error", err)
			failed++
			continue
		}

		prepared := pr.uploadSlides(ctx, name, i, carousel)

		// 1ユニット分の操作は決してコミット境界をまたがないのだ。
		// 入り切らないなら先に今のバッチを確定するのだ。
		opsNeeded := 1 + len(prepared.SourcePostIDs)
		if ops+opsNeeded > pr.maxOps {
			flush()
		}

		batch.Create(pr.collCarousels, prepared)
		for _, postID := range prepared.SourcePostIDs {
			batch.MergeSet(pr.collSources, postID, map[string]any{
				"publishedInCarousel": true,
				"lastPublishedAt":     pr.now(),
			})
		}
		ops += opsNeeded
		pending++

		if _, seen := voiceDeltas[prepared.VoiceID]; !seen {
			voiceOrder = append(voiceOrder, prepared.VoiceID)
		}
		voiceDeltas[prepared.VoiceID]++
	}

	// ボイス使用カウントの加算書き込みなのだ。上限を超えるなら先にフラッシュするのだ。
	if len(voiceOrder) > 0 {
		if ops+len(voiceOrder) > pr.maxOps {
			flush()
		}
		for _, voiceID := range voiceOrder {
			batch.Increment(pr.collVoices, voiceID, "usageCount", voiceDeltas[voiceID])
			ops++
		}
	}

	// 最後に残ったバッチを確定するのだ
	if batch.Len() > 0 {
		flush()
	}

	if commitFailed {
		// どこかのコミットが失敗していたらリネームしないのだ。
		// 次の実行が最初から再処理する（at-least-once）のだ。
		return published, failed, false
	}

	if err := pr.artifacts.MarkProcessed(name); err != nil {
		slog.Error("処理済みリネームに失敗したのだ", "artifact", name, "error", err)
		return published, failed, false
	}

	slog.Info("アーティファクトを処理済みにしたのだ", "artifact", name, "published", published, "failed", failed)
	return published, failed, true
}

// uploadSlides は、インライン画像バイト列を持つスライドをオブジェクトストアへ
// 退避して、メインレコードには参照だけが残るようにするのだ。
// アップロード失敗はユニット中断ではなく、そのスライドの画像なし降格なのだ。
func (pr *ArtifactPublishRunner) uploadSlides(ctx context.Context, artifactName string, unitIndex int, carousel domain.Carousel) domain.Carousel {
	prepared := carousel
	prepared.Slides = make([]domain.Slide, len(carousel.Slides))
	copy(prepared.Slides, carousel.Slides)

	for j, slide := range prepared.Slides {
		if len(slide.Data) == 0 || slide.ImageRef != "" {
			// インラインバイトを持たない or 参照済みならそのままなのだ。
			// どちらにせよ Firestore にバイト列は書かないのだ。
			prepared.Slides[j].Data = nil
			continue
		}

		key := artifact.Key(artifactName, unitIndex, slide.Index)
		mime := slide.MimeType
		if mime == "" {
			mime = "image/png"
		}

		ref, err := pr.uploader.Upload(ctx, key, slide.Data, mime)
		if err != nil {
			slog.Warn("スライド画像のアップロードに失敗したのだ。画像なしに降格するのだ",
				"artifact", artifactName, "unit", unitIndex+1, "slide", slide.Index, "error", err)
			prepared.Slides[j] = slide.WithoutImage(fmt.Sprintf("アップロード失敗: %v", err))
			continue
		}

		prepared.Slides[j].ImageRef = ref
		prepared.Slides[j].ImagePresent = true
		prepared.Slides[j].Data = nil
		prepared.Slides[j].MimeType = ""
	}

	prepared.Status = domain.StatusPublished
	return prepared
}
