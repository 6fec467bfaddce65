package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed question.md
var questionTemplate string

//go:embed direction.md
var directionTemplate string

// QuestionData は、ステップA（問い抽出）プロンプトに埋め込むデータなのだ。
type QuestionData struct {
	Digest string // 圧縮済みソース投稿ダイジェスト
}

// DirectionData は、ステップC（ビジュアル設計）プロンプトに埋め込むデータなのだ。
type DirectionData struct {
	Persona    string // 選択されたボイスのペルソナ文
	Extraction string // ステップAの結果（JSON文字列）
	MinSlides  int    // サポートスライドの最小枚数
	MaxSlides  int    // サポートスライドの最大枚数
}

// Builder は埋め込みテンプレートからプロンプト文字列を組み立てるのだ。
type Builder struct {
	question  *template.Template
	direction *template.Template
}

// NewBuilder は、埋め込み済みテンプレートをパースして Builder を返すのだ。
// embed 設定が壊れているとここで失敗するので、起動時に一度だけ呼ぶのだよ。
func NewBuilder() (*Builder, error) {
	q, err := template.New("question").Parse(questionTemplate)
	if err != nil {
		return nil, fmt.Errorf("questionテンプレートのパースに失敗したのだ: %w", err)
	}
	d, err := template.New("direction").Parse(directionTemplate)
	if err != nil {
		return nil, fmt.Errorf("directionテンプレートのパースに失敗したのだ: %w", err)
	}
	return &Builder{question: q, direction: d}, nil
}

// BuildQuestion は問い抽出プロンプトを組み立てるのだ。
func (b *Builder) BuildQuestion(data QuestionData) (string, error) {
	return b.execute(b.question, data)
}

// BuildDirection はビジュアル設計プロンプトを組み立てるのだ。
func (b *Builder) BuildDirection(data DirectionData) (string, error) {
	return b.execute(b.direction, data)
}

func (b *Builder) execute(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトの組み立てに失敗したのだ: %w", err)
	}
	return sb.String(), nil
}
