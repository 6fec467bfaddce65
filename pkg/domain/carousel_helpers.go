package domain

import (
	"fmt"
	"sort"
)

// NewImageSlide は、画像生成に成功したスライドを生成します。
func NewImageSlide(index int, kind, prompt string, data []byte, mimeType string) Slide {
	return Slide{
		Index:        index,
		Kind:         kind,
		Prompt:       prompt,
		ImagePresent: true,
		Data:         data,
		MimeType:     mimeType,
	}
}

// NewFailedSlide は、画像生成に失敗したスライドを生成します。
// 枠そのものは維持されるため、Index の連番は崩れません。
func NewFailedSlide(index int, kind, prompt string, err error) Slide {
	s := Slide{
		Index:  index,
		Kind:   kind,
		Prompt: prompt,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// WithoutImage は、アップロード失敗などで画像を失ったスライドを返します。
func (s Slide) WithoutImage(reason string) Slide {
	s.ImagePresent = false
	s.ImageRef = ""
	s.Data = nil
	s.MimeType = ""
	if reason != "" {
		s.Error = reason
	}
	return s
}

// SortSlides はスライドを Index の昇順に並べ替えます。
// 並列生成で失われた表示順をここで復元します。
func SortSlides(slides []Slide) {
	sort.Slice(slides, func(i, j int) bool { return slides[i].Index < slides[j].Index })
}

// DedupeSourcePostIDs は、最初の出現順を保ったまま重複を取り除き、limit 件に丸めます。
func DedupeSourcePostIDs(ids []string, limit int) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Validate は、公開可能なカルーセルとして必須の形になっているかを検査します。
// 公開処理はこれに失敗したカルーセルをスキップしてカウントします。
func (c Carousel) Validate() error {
	if c.SourceQuestion == "" {
		return fmt.Errorf("source_question が空です")
	}
	if c.VoiceID == "" {
		return fmt.Errorf("voice_id が空です")
	}
	if len(c.Slides) == 0 {
		return fmt.Errorf("スライドが1枚もありません")
	}
	if c.Slides[0].Kind != SlideKindHeader {
		return fmt.Errorf("スライド1の種別が header ではありません: %q", c.Slides[0].Kind)
	}
	for i, s := range c.Slides {
		if s.Index != i+1 {
			return fmt.Errorf("スライドの連番が崩れています: 位置 %d に index %d", i+1, s.Index)
		}
		switch s.Kind {
		case SlideKindHeader, SlideKindPerspective, SlideKindMeme, SlideKindDiagram:
		default:
			return fmt.Errorf("不明なスライド種別です: %q", s.Kind)
		}
		if s.Error != "" && s.ImagePresent {
			return fmt.Errorf("スライド %d: エラー付きなのに画像ありになっています", s.Index)
		}
		if s.ImagePresent && s.ImageRef == "" && len(s.Data) == 0 {
			return fmt.Errorf("スライド %d: 画像ありなのに参照もデータもありません", s.Index)
		}
	}
	return nil
}

// ImageCount は画像を持つスライドの数を返します。
func (c Carousel) ImageCount() int {
	n := 0
	for _, s := range c.Slides {
		if s.ImagePresent {
			n++
		}
	}
	return n
}
