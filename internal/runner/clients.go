package runner

import "context"

// TextGenerator は、テキスト生成モデルへの単発呼び出しの契約なのだ。
// 実体は builder が go-ai-client の Gemini クライアントを包んで注入するのだ。
type TextGenerator interface {
	// GenerateText はプロンプトを投げて生テキスト応答を返すのだ。
	GenerateText(ctx context.Context, prompt, model string) (string, error)
}

// 画像生成の品質ヒントなのだ。ヘッダーは高品質、サポートは標準で
// コストを抑えるのが方針なのだ。
const (
	QualityHigh     = "high"
	QualityStandard = "standard"
)

// ImageRequest は画像生成1回分の指示なのだ。
type ImageRequest struct {
	Prompt      string
	AspectRatio string
	Quality     string
}

// ImageResult は生成された画像のバイト列なのだ。
type ImageResult struct {
	Data     []byte
	MimeType string
}

// ImageClient は、画像生成モデルへの単発呼び出しの契約なのだ。
// 実体は builder が gemini-image-kit のジェネレーターを包んで注入するのだ。
type ImageClient interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}
