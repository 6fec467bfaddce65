package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shouni/go-carousel-kit/internal/config"
	"github.com/shouni/go-carousel-kit/internal/prompt"
	"github.com/shouni/go-carousel-kit/internal/voices"
	"github.com/shouni/go-carousel-kit/pkg/domain"
)

// サポートスライドの枚数の希望範囲なのだ。モデルが多少逸脱しても
// 連番を振り直して受け入れるので、最終的なユニットは7〜9枚になるのだ。
const (
	minSupportingSlides = 6
	maxSupportingSlides = 8
)

// SynthesisResult は、合成ステージ（A→B→C）の成果一式なのだ。
type SynthesisResult struct {
	Extraction   domain.QuestionExtraction
	Voice        domain.Voice
	Plan         domain.VisualPlan
	HeaderPrompt string // スライド1（ヘッダー）用の画像プロンプト
}

// SynthesisRunner は、ソース投稿から1ユニット分の構成案を合成する契約なのだ。
type SynthesisRunner interface {
	Run(ctx context.Context, posts []domain.SourcePost) (*SynthesisResult, error)
}

// CarouselSynthesisRunner は SynthesisRunner の標準実装なのだ。
// 2回のテキスト生成呼び出しの間にボイス選択を挟むのだ。
type CarouselSynthesisRunner struct {
	ai           TextGenerator
	selector     voices.Selector
	prompts      *prompt.Builder
	model        string
	promptSuffix string // 画像プロンプト末尾に強制付与する構図指定
	aspectRatio  string
}

// NewCarouselSynthesisRunner は、依存を注入して合成ランナーを生成するのだ。
func NewCarouselSynthesisRunner(
	ai TextGenerator,
	selector voices.Selector,
	prompts *prompt.Builder,
	model string,
	promptSuffix string,
	aspectRatio string,
) *CarouselSynthesisRunner {
	return &CarouselSynthesisRunner{
		ai:           ai,
		selector:     selector,
		prompts:      prompts,
		model:        model,
		promptSuffix: promptSuffix,
		aspectRatio:  aspectRatio,
	}
}

// Run は、問い抽出 → ボイス選択 → ビジュアル設計を順に実行するのだ。
// どこか1段でも失敗したらユニットごと失敗で、部分的な成果は返さないのだ。
func (sr *CarouselSynthesisRunner) Run(ctx context.Context, posts []domain.SourcePost) (*SynthesisResult, error) {
	// --- Step A: 問い抽出 ---
	extraction, err := sr.extractQuestion(ctx, posts)
	if err != nil {
		return nil, err
	}

	// --- Step B: ボイス選択 ---
	// 最上位スコアの候補を採用するのだ。同点の順位はセレクター側の契約なのだ。
	candidates, err := sr.selector.Select(ctx, extraction.Themes, extraction.Keywords)
	if err != nil {
		return nil, fmt.Errorf("ボイス選択に失敗したのだ: %w", err)
	}
	voice := candidates[0].Voice
	slog.Info("ボイスを選択したのだ", "voice", voice.Name, "score", candidates[0].Score, "candidates", len(candidates))

	// --- Step C: ビジュアル設計 ---
	plan, err := sr.planVisuals(ctx, voice, extraction)
	if err != nil {
		return nil, err
	}

	return &SynthesisResult{
		Extraction:   extraction,
		Voice:        voice,
		Plan:         plan,
		HeaderPrompt: sr.enforceFraming(sr.headerPrompt(extraction, plan)),
	}, nil
}

// extractQuestion は、圧縮済みダイジェストを投げて問い・テーマ・キーワードを抽出するのだ。
func (sr *CarouselSynthesisRunner) extractQuestion(ctx context.Context, posts []domain.SourcePost) (domain.QuestionExtraction, error) {
	digest := buildDigest(posts)

	p, err := sr.prompts.BuildQuestion(prompt.QuestionData{Digest: digest})
	if err != nil {
		return domain.QuestionExtraction{}, err
	}

	raw, err := sr.ai.GenerateText(ctx, p, sr.model)
	if err != nil {
		return domain.QuestionExtraction{}, fmt.Errorf("問い抽出の呼び出しに失敗したのだ: %w", err)
	}

	var extraction domain.QuestionExtraction
	if err := parseModelJSON(raw, &extraction); err != nil {
		return domain.QuestionExtraction{}, fmt.Errorf("問い抽出: %w", err)
	}
	if extraction.Question == "" || len(extraction.Themes) == 0 || len(extraction.Keywords) == 0 {
		return domain.QuestionExtraction{}, fmt.Errorf("問い抽出の応答に必須フィールドが無いのだ: %w", ErrGeneration)
	}

	// モデルが投稿IDを返さなかったら、ダイジェストに入れた全IDで補うのだ
	if len(extraction.SourcePostIDs) == 0 {
		for _, post := range posts {
			extraction.SourcePostIDs = append(extraction.SourcePostIDs, post.ID)
		}
	}
	return extraction, nil
}

// planVisuals は、ペルソナ付きでスライド構成を設計させて正規化するのだ。
func (sr *CarouselSynthesisRunner) planVisuals(ctx context.Context, voice domain.Voice, extraction domain.QuestionExtraction) (domain.VisualPlan, error) {
	extractionJSON, err := json.Marshal(extraction)
	if err != nil {
		return domain.VisualPlan{}, fmt.Errorf("抽出結果のエンコードに失敗したのだ: %w", err)
	}

	p, err := sr.prompts.BuildDirection(prompt.DirectionData{
		Persona:    voice.Persona,
		Extraction: string(extractionJSON),
		MinSlides:  minSupportingSlides,
		MaxSlides:  maxSupportingSlides,
	})
	if err != nil {
		return domain.VisualPlan{}, err
	}

	raw, err := sr.ai.GenerateText(ctx, p, sr.model)
	if err != nil {
		return domain.VisualPlan{}, fmt.Errorf("ビジュアル設計の呼び出しに失敗したのだ: %w", err)
	}

	var plan domain.VisualPlan
	if err := parseModelJSON(raw, &plan); err != nil {
		return domain.VisualPlan{}, fmt.Errorf("ビジュアル設計: %w", err)
	}
	if len(plan.SlidePrompts) == 0 {
		return domain.VisualPlan{}, fmt.Errorf("ビジュアル設計にスライドが1枚もないのだ: %w", ErrGeneration)
	}

	sr.normalizePlan(&plan)
	return plan, nil
}

// normalizePlan は、モデルの応答がどうであれ下流の前提を満たす形に整えるのだ。
//   - 空の imagePrompt を落とす
//   - slideNumber 順に並べて 2..N の連番に振り直す（スライド1はヘッダー予約）
//   - 全プロンプトに構図指定サフィックスを後付けで強制する
func (sr *CarouselSynthesisRunner) normalizePlan(plan *domain.VisualPlan) {
	kept := plan.SlidePrompts[:0]
	for _, sp := range plan.SlidePrompts {
		if strings.TrimSpace(sp.ImagePrompt) == "" {
			continue
		}
		kept = append(kept, sp)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].SlideNumber < kept[j].SlideNumber })

	for i := range kept {
		kept[i].SlideNumber = i + 2
		kept[i].ImagePrompt = sr.enforceFraming(kept[i].ImagePrompt)
	}
	plan.SlidePrompts = kept
}

// enforceFraming は構図指定サフィックスを確実に1回だけ付けるのだ。
// モデル任せにしないのは、下流レンダリングが固定キャンバスを前提にするからなのだ。
func (sr *CarouselSynthesisRunner) enforceFraming(imagePrompt string) string {
	p := strings.TrimSpace(imagePrompt)
	if sr.promptSuffix == "" || strings.Contains(p, sr.promptSuffix) {
		return p
	}
	return p + ", " + sr.promptSuffix
}

// headerPrompt はスライド1（ヘッダー）用の画像プロンプトを組み立てるのだ。
func (sr *CarouselSynthesisRunner) headerPrompt(extraction domain.QuestionExtraction, plan domain.VisualPlan) string {
	parts := []string{"Title card illustration for the question: " + extraction.Question}
	if plan.CarouselStyle != "" {
		parts = append(parts, plan.CarouselStyle)
	}
	return strings.Join(parts, ", ")
}

// buildDigest は、ソース投稿を固定の文字数・件数上限で切り詰めて
// プロンプト用ダイジェストを作るのだ。意図的な非可逆圧縮なのだ。
func buildDigest(posts []domain.SourcePost) string {
	if len(posts) > config.MaxDigestPosts {
		posts = posts[:config.MaxDigestPosts]
	}

	var sb strings.Builder
	for _, post := range posts {
		fmt.Fprintf(&sb, "### 投稿 %s (%s, score=%d)\n", post.ID, post.Source, post.Score)
		fmt.Fprintf(&sb, "%s\n\n%s\n", post.Title, truncate(post.Body, config.MaxBodyChars))

		comments := post.Comments
		if len(comments) > config.MaxCommentsPerPost {
			comments = comments[:config.MaxCommentsPerPost]
		}
		for _, c := range comments {
			fmt.Fprintf(&sb, "- コメント (score=%d): %s\n", c.Score, truncate(c.Body, config.MaxCommentChars))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// parseModelJSON は、AIが返したテキストからMarkdownのコードブロック等を
// 除去してJSONとしてパースするのだ。
func parseModelJSON(raw string, v any) error {
	rawJSON := strings.TrimSpace(raw)
	rawJSON = strings.TrimPrefix(rawJSON, "```json")
	rawJSON = strings.TrimPrefix(rawJSON, "```")
	rawJSON = strings.TrimSuffix(rawJSON, "```")
	rawJSON = strings.TrimSpace(rawJSON)

	if err := json.Unmarshal([]byte(rawJSON), v); err != nil {
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return nil
}
