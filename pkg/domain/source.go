package domain

import "time"

// SourcePost のステータスです。生成に使われた投稿は used になります。
const (
	SourceStatusPending = "pending"
	SourceStatusUsed    = "used"
)

// SourcePost は、カルーセル生成の材料となる収集済み投稿です。
type SourcePost struct {
	ID        string          `json:"id" firestore:"-"`
	Source    string          `json:"source" firestore:"source"`
	Title     string          `json:"title" firestore:"title"`
	Body      string          `json:"body" firestore:"body"`
	Score     int             `json:"score" firestore:"score"`
	Status    string          `json:"status" firestore:"status"`
	Comments  []SourceComment `json:"comments" firestore:"comments"`
	CreatedAt time.Time       `json:"created_at" firestore:"createdAt"`
}

// SourceComment は投稿にぶら下がるコメントです。
type SourceComment struct {
	Author string `json:"author" firestore:"author"`
	Body   string `json:"body" firestore:"body"`
	Score  int    `json:"score" firestore:"score"`
}
