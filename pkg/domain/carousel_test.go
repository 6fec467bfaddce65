package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCarousel_JSON(t *testing.T) {
	t.Run("アーティファクトJSONを往復しても内容が一致するのだ", func(t *testing.T) {
		c := Carousel{
			SourceQuestion: "なぜ朝型生活は続かないのか？",
			Context:        "睡眠スレッドの議論まとめ",
			Themes:         []string{"習慣", "睡眠"},
			Keywords:       []string{"朝活", "クロノタイプ"},
			Slides: []Slide{
				NewImageSlide(1, SlideKindHeader, "title card", []byte{0x89, 0x50}, "image/png"),
				NewFailedSlide(2, SlideKindPerspective, "owl perspective", errors.New("quota exceeded")),
			},
			VoiceID:       "voice-001",
			VoiceName:     "ずんだ先生",
			SourcePostIDs: []string{"p1", "p2"},
			Status:        StatusDraft,
			GeneratedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		}

		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("Marshal失敗なのだ: %v", err)
		}

		var decoded Carousel
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal失敗なのだ: %v", err)
		}

		if !reflect.DeepEqual(c, decoded) {
			t.Errorf("変換前後でデータが一致しないのだ。期待: %+v, 実際: %+v", c, decoded)
		}
	})
}

func TestSlideConstructors(t *testing.T) {
	t.Run("失敗スライドは画像なし・エラーありになるのだ", func(t *testing.T) {
		s := NewFailedSlide(3, SlideKindMeme, "meme prompt", errors.New("boom"))
		if s.ImagePresent {
			t.Error("失敗スライドが画像ありになっているのだ")
		}
		if s.Error == "" {
			t.Error("エラーメッセージが空なのだ")
		}
		if s.Index != 3 {
			t.Errorf("Index が保持されていないのだ: %d", s.Index)
		}
	})

	t.Run("WithoutImageで画像情報が全部消えるのだ", func(t *testing.T) {
		s := NewImageSlide(1, SlideKindHeader, "p", []byte("img"), "image/png")
		s = s.WithoutImage("upload failed")
		if s.ImagePresent || s.ImageRef != "" || s.Data != nil {
			t.Errorf("画像情報が残っているのだ: %+v", s)
		}
		if s.Error != "upload failed" {
			t.Errorf("理由が記録されていないのだ: %q", s.Error)
		}
	})
}

func TestDedupeSourcePostIDs(t *testing.T) {
	t.Run("重複を除き初出順を保つのだ", func(t *testing.T) {
		got := DedupeSourcePostIDs([]string{"a", "b", "a", "", "c", "b"}, 0)
		want := []string{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("期待 %v, 実際 %v", want, got)
		}
	})

	t.Run("上限で丸められるのだ", func(t *testing.T) {
		ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
		got := DedupeSourcePostIDs(ids, MaxSourcePosts)
		if len(got) != MaxSourcePosts {
			t.Errorf("上限 %d のはずが %d 件なのだ", MaxSourcePosts, len(got))
		}
		if got[0] != "1" || got[MaxSourcePosts-1] != "10" {
			t.Errorf("初出順が保たれていないのだ: %v", got)
		}
	})
}

func TestCarousel_Validate(t *testing.T) {
	valid := func() Carousel {
		return Carousel{
			SourceQuestion: "q",
			VoiceID:        "v",
			Slides: []Slide{
				NewImageSlide(1, SlideKindHeader, "h", []byte("x"), "image/png"),
				NewFailedSlide(2, SlideKindPerspective, "p", errors.New("ng")),
			},
			Status: StatusDraft,
		}
	}

	t.Run("正常形は通るのだ", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("正常なカルーセルが弾かれたのだ: %v", err)
		}
	})

	t.Run("必須フィールド欠落は弾かれるのだ", func(t *testing.T) {
		c := valid()
		c.SourceQuestion = ""
		if err := c.Validate(); err == nil {
			t.Error("source_question 欠落が通ってしまったのだ")
		}
	})

	t.Run("スライド1がheaderでないと弾かれるのだ", func(t *testing.T) {
		c := valid()
		c.Slides[0].Kind = SlideKindMeme
		if err := c.Validate(); err == nil {
			t.Error("先頭スライドの種別違反が通ってしまったのだ")
		}
	})

	t.Run("連番の崩れは弾かれるのだ", func(t *testing.T) {
		c := valid()
		c.Slides[1].Index = 5
		if err := c.Validate(); err == nil {
			t.Error("欠番ありの連番が通ってしまったのだ")
		}
	})
}

func TestSortSlides(t *testing.T) {
	slides := []Slide{{Index: 3}, {Index: 1}, {Index: 2}}
	SortSlides(slides)
	for i, s := range slides {
		if s.Index != i+1 {
			t.Fatalf("並べ替え後も順序が崩れているのだ: %+v", slides)
		}
	}
}
