package domain

import "time"

// Carousel の公開ステータスです。生成直後は draft、公開処理の完了で published になります。
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Slide の種別です。スライド1は必ず header、2枚目以降は supporting 系の種別になります。
const (
	SlideKindHeader      = "header"
	SlideKindPerspective = "perspective"
	SlideKindMeme        = "meme"
	SlideKindDiagram     = "diagram"
)

// MaxSourcePosts は、1つの Carousel が参照できるソース投稿IDの上限です。
const MaxSourcePosts = 10

// Carousel は1件の生成済みカルーセル（公開単位）を表します。
// json タグは中間アーティファクトの形式、firestore タグは公開先レコードの形式です。
type Carousel struct {
	SourceQuestion string    `json:"source_question" firestore:"sourceQuestion"`
	Context        string    `json:"context" firestore:"context"`
	Themes         []string  `json:"themes" firestore:"themes"`
	Keywords       []string  `json:"keywords" firestore:"keywords"`
	Slides         []Slide   `json:"slides" firestore:"slides"`
	VoiceID        string    `json:"voice_id" firestore:"voiceId"`
	VoiceName      string    `json:"voice_name" firestore:"voiceName"`
	VoiceAvatarURL string    `json:"voice_avatar_url,omitempty" firestore:"voiceAvatarUrl,omitempty"`
	SourcePostIDs  []string  `json:"source_post_ids" firestore:"sourcePostIds"`
	Status         string    `json:"status" firestore:"status"`
	Style          string    `json:"style,omitempty" firestore:"style,omitempty"`
	TargetAudience string    `json:"target_audience,omitempty" firestore:"targetAudience,omitempty"`
	GeneratedAt    time.Time `json:"generated_at" firestore:"generatedAt"`
}

// Slide はカルーセルの1枚を表します。Index は1始まりで隙間なく連続します。
// 画像生成の失敗はスライドの欠番ではなく Error 付きの画像なしスライドになります。
type Slide struct {
	Index        int    `json:"index" firestore:"index"`
	Kind         string `json:"kind" firestore:"kind"`
	Prompt       string `json:"prompt" firestore:"prompt"`
	ImagePresent bool   `json:"image_present" firestore:"imagePresent"`
	ImageRef     string `json:"image_ref,omitempty" firestore:"imageRef,omitempty"`
	Error        string `json:"error,omitempty" firestore:"-"`

	// Data はアップロード前のインライン画像バイト列。アーティファクトJSONにのみ現れ、
	// 公開時にオブジェクトストアへ退避されるため Firestore には書き込まれません。
	Data     []byte `json:"data,omitempty" firestore:"-"`
	MimeType string `json:"mime_type,omitempty" firestore:"-"`
}

// Artifact は1回の生成実行の成果物一式（1..K件のカルーセル）を保持する入れ物です。
// 一度書き出したら変更されず、公開処理がちょうど1回だけ読み取ります。
type Artifact struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Carousels   []Carousel `json:"carousels"`
}
