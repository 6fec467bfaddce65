package domain

// QuestionExtraction は、ステップA（問い抽出）でAIモデルから返される構造です。
type QuestionExtraction struct {
	Question          string   `json:"question"`
	Context           string   `json:"context"`
	SourceInsights    []string `json:"sourceInsights"`
	Themes            []string `json:"themes"`
	Keywords          []string `json:"keywords"`
	Perspectives      []string `json:"perspectives"`
	MemeOpportunities []string `json:"memeOpportunities"`
	SourcePostIDs     []string `json:"sourcePostIds"`
}

// VisualPlan は、ステップC（ビジュアル設計）でAIモデルから返される構造です。
// SlidePrompts はスライド2..Nのみを含みます（スライド1のヘッダーは別途生成）。
type VisualPlan struct {
	SlidePrompts   []SlidePrompt `json:"slidePrompts"`
	CarouselStyle  string        `json:"carouselStyle"`
	TargetAudience string        `json:"targetAudience"`
}

// SlidePrompt は1枚分の画像生成指示です。
type SlidePrompt struct {
	SlideNumber int    `json:"slideNumber"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ImagePrompt string `json:"imagePrompt"`
}
