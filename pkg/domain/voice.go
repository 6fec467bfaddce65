package domain

// Voice は、生成プロンプトを条件付ける「語り手」のペルソナです。
type Voice struct {
	ID         string   `json:"id" firestore:"-"`
	Name       string   `json:"name" firestore:"name"`
	AvatarURL  string   `json:"avatar_url" firestore:"avatarUrl"`
	Persona    string   `json:"persona" firestore:"persona"`
	Tags       []string `json:"tags" firestore:"tags"`
	UsageCount int64    `json:"usage_count" firestore:"usageCount"`
}

// ScoredVoice は、テーマ・キーワードとの適合度付きの候補です。
type ScoredVoice struct {
	Voice
	Score float64 `json:"score"`
}
