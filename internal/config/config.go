package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel          = "gemini-3-flash-preview"
	DefaultImageModel     = "gemini-3-pro-image-preview"   // ヘッダースライド用（高品質）
	DefaultImageModelFast = "gemini-3-flash-image-preview" // サポートスライド用（標準品質）
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultRateLimit      = 10 * time.Second // 画像生成リクエストの最小間隔なのだ
	DefaultCount          = 3
	DefaultConcurrency    = 5
	DefaultArtifactDir    = "output/artifacts"
	DefaultImageDir       = "output/slides" // ローカル or gs://... を指定できるのだ

	// DefaultAspectRatio と DefaultImagePromptSuffix は、モデルが何を返そうと
	// 後段レンダリングが前提とする縦長キャンバスを強制するための指定なのだ。
	DefaultAspectRatio       = "4:5"
	DefaultImagePromptSuffix = "vertical 4:5 portrait composition, mobile carousel slide, bold readable layout, high resolution, no watermark"
)

// ソース投稿をプロンプトに詰め込む際の圧縮上限なのだ。
// 情報を意図的に削ってペイロードを抑える方針であって、バグではないのだよ。
const (
	MaxDigestPosts     = 12
	MaxBodyChars       = 1500
	MaxCommentsPerPost = 5
	MaxCommentChars    = 300
)

// MaxBatchOps は、共有ストアが1コミットに許す操作数の上限なのだ（Firestoreの500）。
const MaxBatchOps = 500

// Firestore のコレクション名なのだ。
const (
	CollectionCarousels = "carousels"
	CollectionSources   = "source_posts"
	CollectionVoices    = "voices"
)

// Config はアプリケーション全体の環境設定（APIキーやクラウド設定）を保持する構造体なのだ。
type Config struct {
	ProjectID         string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiImageModel  string
	GeminiImageFast   string
	ImagePromptSuffix string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		ProjectID:         envutil.GetEnv("PROJECT_ID", ""),
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:       envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel:  envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		GeminiImageFast:   envutil.GetEnv("IMAGE_GEMINI_MODEL_FAST", DefaultImageModelFast),
		ImagePromptSuffix: envutil.GetEnv("IMAGE_PROMPT_SUFFIX", DefaultImagePromptSuffix),
	}
	return cfg
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 生成制御
	Count       int // --count: 生成するカルーセル数
	Concurrency int // --concurrency: 同時に生成する最大ユニット数

	// 出力先
	ArtifactDir string // --artifact-dir: 中間アーティファクトの置き場
	ImageDir    string // --image-dir: スライド画像のアップロード先（ローカル or gs://...）

	// AI挙動設定
	AIModel    string // --model: テキスト生成用のGeminiモデル
	ImageModel string // --image-model: 画像生成用のGeminiモデル

	// 実行制御
	HTTPTimeout time.Duration // --http-timeout
}
