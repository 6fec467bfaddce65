package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-carousel-kit/internal/artifact"
	"github.com/shouni/go-carousel-kit/internal/store"
	"github.com/shouni/go-carousel-kit/pkg/domain"
)

// ---- 共有ストアのフェイクなのだ ----

type fakeOp struct {
	kind       string // "create" | "mergeset" | "increment"
	collection string
	id         string
	field      string
	delta      int64
	data       any
}

type fakeBatch struct {
	store *fakeStore
	ops   []fakeOp
}

func (b *fakeBatch) Create(collection string, data any) {
	b.ops = append(b.ops, fakeOp{kind: "create", collection: collection, data: data})
}

func (b *fakeBatch) MergeSet(collection, id string, data map[string]any) {
	b.ops = append(b.ops, fakeOp{kind: "mergeset", collection: collection, id: id, data: data})
}

func (b *fakeBatch) Increment(collection, id, field string, delta int64) {
	b.ops = append(b.ops, fakeOp{kind: "increment", collection: collection, id: id, field: field, delta: delta})
}

func (b *fakeBatch) Len() int { return len(b.ops) }

func (b *fakeBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	b.store.commitSeq++
	if b.store.failCommits[b.store.commitSeq] {
		return errors.New("synthetic commit failure")
	}
	b.store.committed = append(b.store.committed, b.ops)
	return nil
}

type fakeStore struct {
	committed   [][]fakeOp
	commitSeq   int
	failCommits map[int]bool // n回目のコミットを失敗させるのだ（1始まり）
	newBatches  int
}

func (s *fakeStore) NewBatch() store.WriteBatch {
	s.newBatches++
	return &fakeBatch{store: s}
}

func (s *fakeStore) createdQuestions() []string {
	var out []string
	for _, batch := range s.committed {
		for _, op := range batch {
			if op.kind == "create" {
				out = append(out, op.data.(domain.Carousel).SourceQuestion)
			}
		}
	}
	return out
}

// ---- アップローダーのフェイクなのだ ----

type fakeUploader struct {
	failKeys map[string]bool
	uploads  []string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	if f.failKeys[key] {
		return "", errors.New("synthetic upload failure")
	}
	f.uploads = append(f.uploads, key)
	return "https://cdn.example/" + key, nil
}

// ---- テスト用のデータ構築なのだ ----

func publishableCarousel(question string, sourceIDs ...string) domain.Carousel {
	return domain.Carousel{
		SourceQuestion: question,
		VoiceID:        "v1",
		SourcePostIDs:  sourceIDs,
		Status:         domain.StatusDraft,
		Slides: []domain.Slide{
			domain.NewImageSlide(1, domain.SlideKindHeader, "h", []byte("img"), "image/png"),
			domain.NewFailedSlide(2, domain.SlideKindPerspective, "p", errors.New("ng")),
		},
	}
}

func writeTestArtifact(t *testing.T, dir string, ts int64, carousels ...domain.Carousel) (*artifact.Store, string) {
	t.Helper()
	s := artifact.NewStore(dir)
	name, err := s.Write(domain.Artifact{GeneratedAt: time.Unix(ts, 0), Carousels: carousels})
	if err != nil {
		t.Fatalf("テスト用アーティファクトの書き込みに失敗したのだ: %v", err)
	}
	return s, name
}

func newTestPublisher(arts *artifact.Store, st *fakeStore, up *fakeUploader, maxOps int) *ArtifactPublishRunner {
	return NewArtifactPublishRunner(arts, st, up, maxOps, "carousels", "source_posts", "voices")
}

// ---- 本体なのだ ----

func TestArtifactPublishRunner_BatchCapInvariant(t *testing.T) {
	t.Run("どのコミットも上限以下で、1ユニットはバッチをまたがないのだ", func(t *testing.T) {
		// 各ユニットは 1 + len(sourceIDs) ops。上限6に対して 4,4,3,2 ops を積むのだ。
		carousels := []domain.Carousel{
			publishableCarousel("q1", "a", "b", "c"),
			publishableCarousel("q2", "d", "e", "f"),
			publishableCarousel("q3", "g", "h"),
			publishableCarousel("q4", "i"),
		}
		arts, _ := writeTestArtifact(t, t.TempDir(), 1700000000, carousels...)
		st := &fakeStore{}
		pr := newTestPublisher(arts, st, &fakeUploader{}, 6)

		sum, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("PublishPending失敗なのだ: %v", err)
		}
		if sum.PublishedCount != 4 || sum.ErrorCount != 0 {
			t.Errorf("集計が違うのだ: %+v", sum)
		}

		for i, batch := range st.committed {
			if len(batch) > 6 {
				t.Errorf("バッチ %d が上限超過なのだ: %d ops", i+1, len(batch))
			}
		}

		// 各ユニットの create とその直後の mergeset 群が同一バッチに居ることを確認するのだ
		for _, batch := range st.committed {
			expectSources := 0
			for _, op := range batch {
				switch op.kind {
				case "create":
					if expectSources != 0 {
						t.Error("前のユニットのmergeset群が揃う前に次のcreateが来たのだ")
					}
					expectSources = len(op.data.(domain.Carousel).SourcePostIDs)
				case "mergeset":
					if expectSources == 0 {
						t.Error("createを伴わないmergesetが居るのだ")
					}
					expectSources--
				}
			}
			if expectSources != 0 {
				t.Error("ユニットの書き込みがバッチ境界で分断されたのだ")
			}
		}
	})
}

func TestArtifactPublishRunner_IdempotentRepublish(t *testing.T) {
	t.Run("2回目の実行では書き込みが一切走らないのだ", func(t *testing.T) {
		arts, name := writeTestArtifact(t, t.TempDir(), 1700000001, publishableCarousel("q1", "a"))
		st := &fakeStore{}
		pr := newTestPublisher(arts, st, &fakeUploader{}, 500)

		first, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("1回目失敗なのだ: %v", err)
		}
		if first.PublishedCount != 1 || first.ArtifactsProcessed != 1 {
			t.Fatalf("1回目の集計が違うのだ: %+v", first)
		}

		pending, err := arts.ListPending()
		if err != nil {
			t.Fatalf("ListPending失敗なのだ: %v", err)
		}
		for _, p := range pending {
			if p == name {
				t.Error("処理済みアーティファクトが候補に残っているのだ")
			}
		}

		commitsBefore := len(st.committed)
		second, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("2回目失敗なのだ: %v", err)
		}
		if second.PublishedCount != 0 || len(st.committed) != commitsBefore {
			t.Errorf("2回目に追加の書き込みが走ったのだ: %+v", second)
		}
	})
}

func TestArtifactPublishRunner_ValidationSkip(t *testing.T) {
	t.Run("5件中1件不正なら公開4・エラー1で不正ユニットはストアに現れないのだ", func(t *testing.T) {
		invalid := publishableCarousel("q3", "x")
		invalid.VoiceID = "" // 必須フィールド欠落なのだ
		carousels := []domain.Carousel{
			publishableCarousel("q1", "a"),
			publishableCarousel("q2", "b"),
			invalid,
			publishableCarousel("q4", "c"),
			publishableCarousel("q5", "d"),
		}
		arts, _ := writeTestArtifact(t, t.TempDir(), 1700000002, carousels...)
		st := &fakeStore{}
		pr := newTestPublisher(arts, st, &fakeUploader{}, 500)

		sum, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("PublishPending失敗なのだ: %v", err)
		}
		if sum.PublishedCount != 4 || sum.ErrorCount != 1 {
			t.Errorf("集計が違うのだ: %+v", sum)
		}
		// 検証失敗はアーティファクト処理自体は止めないのだ
		if sum.ArtifactsProcessed != 1 {
			t.Errorf("アーティファクトは処理済みになるはずなのだ: %+v", sum)
		}
		for _, q := range st.createdQuestions() {
			if q == "q3" {
				t.Error("不正ユニットがストアに書かれているのだ")
			}
		}
	})
}

func TestArtifactPublishRunner_CommitFailureAccounting(t *testing.T) {
	t.Run("失敗したコミットのユニットは一括で失敗計上、処理は続くのだ", func(t *testing.T) {
		// 上限4・各ユニット2opsなので、2ユニットごとにコミットされるのだ
		carousels := []domain.Carousel{
			publishableCarousel("q1", "a"),
			publishableCarousel("q2", "b"),
			publishableCarousel("q3", "c"),
			publishableCarousel("q4", "d"),
		}
		arts, name := writeTestArtifact(t, t.TempDir(), 1700000003, carousels...)
		st := &fakeStore{failCommits: map[int]bool{1: true}}
		pr := newTestPublisher(arts, st, &fakeUploader{}, 4)

		sum, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("PublishPending失敗なのだ: %v", err)
		}
		if sum.PublishedCount != 2 || sum.ErrorCount != 2 {
			t.Errorf("保守的な一括計上になっていないのだ: %+v", sum)
		}

		// コミット失敗があったのでリネームされず、次回再処理できるのだ
		if sum.ArtifactsFailed != 1 {
			t.Errorf("アーティファクトは未処理のまま残るはずなのだ: %+v", sum)
		}
		pending, _ := arts.ListPending()
		found := false
		for _, p := range pending {
			if p == name {
				found = true
			}
		}
		if !found {
			t.Error("未処理アーティファクトが候補から消えているのだ")
		}
		if !sum.HasErrors() {
			t.Error("エラーありの集計になっていないのだ")
		}
	})
}

func TestArtifactPublishRunner_VoiceUsageDeltas(t *testing.T) {
	t.Run("ボイス加算はユニットごとではなく最後にまとめて1回なのだ", func(t *testing.T) {
		c1 := publishableCarousel("q1", "a")
		c2 := publishableCarousel("q2", "b")
		c3 := publishableCarousel("q3", "c")
		c3.VoiceID = "v2"
		arts, _ := writeTestArtifact(t, t.TempDir(), 1700000004, c1, c2, c3)
		st := &fakeStore{}
		pr := newTestPublisher(arts, st, &fakeUploader{}, 500)

		if _, err := pr.PublishPending(context.Background()); err != nil {
			t.Fatalf("PublishPending失敗なのだ: %v", err)
		}

		increments := map[string]int64{}
		count := 0
		for _, batch := range st.committed {
			for _, op := range batch {
				if op.kind == "increment" {
					increments[op.id] += op.delta
					count++
					if op.field != "usageCount" {
						t.Errorf("加算フィールドが違うのだ: %s", op.field)
					}
				}
			}
		}
		if count != 2 {
			t.Errorf("加算書き込みは1ボイス1回のはずなのだ: %d", count)
		}
		if increments["v1"] != 2 || increments["v2"] != 1 {
			t.Errorf("加算量が違うのだ: %v", increments)
		}
	})
}

func TestArtifactPublishRunner_UploadHandling(t *testing.T) {
	t.Run("インライン画像は参照化され、失敗スライドは画像なしに降格なのだ", func(t *testing.T) {
		c := domain.Carousel{
			SourceQuestion: "q1",
			VoiceID:        "v1",
			SourcePostIDs:  []string{"a"},
			Status:         domain.StatusDraft,
			Slides: []domain.Slide{
				domain.NewImageSlide(1, domain.SlideKindHeader, "h", []byte("img1"), "image/png"),
				domain.NewImageSlide(2, domain.SlideKindMeme, "m", []byte("img2"), "image/png"),
			},
		}
		arts, name := writeTestArtifact(t, t.TempDir(), 1700000005, c)
		up := &fakeUploader{failKeys: map[string]bool{artifact.Key(name, 0, 2): true}}
		st := &fakeStore{}
		pr := newTestPublisher(arts, st, up, 500)

		sum, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("PublishPending失敗なのだ: %v", err)
		}
		// アップロード失敗はユニット中断ではないのだ
		if sum.PublishedCount != 1 || sum.ErrorCount != 0 {
			t.Errorf("集計が違うのだ: %+v", sum)
		}

		var written domain.Carousel
		for _, batch := range st.committed {
			for _, op := range batch {
				if op.kind == "create" {
					written = op.data.(domain.Carousel)
				}
			}
		}
		if written.Status != domain.StatusPublished {
			t.Errorf("公開済みステータスになっていないのだ: %s", written.Status)
		}
		if len(written.Slides) != 2 {
			t.Fatalf("スライド枠が欠けたのだ: %d", len(written.Slides))
		}
		if !written.Slides[0].ImagePresent || !strings.HasPrefix(written.Slides[0].ImageRef, "https://cdn.example/") {
			t.Errorf("スライド1が参照化されていないのだ: %+v", written.Slides[0])
		}
		if written.Slides[1].ImagePresent || written.Slides[1].Error == "" {
			t.Errorf("スライド2が降格されていないのだ: %+v", written.Slides[1])
		}
		for _, s := range written.Slides {
			if len(s.Data) != 0 {
				t.Error("インラインバイト列がレコードに残っているのだ")
			}
		}
	})
}

func TestArtifactPublishRunner_UnreadableArtifact(t *testing.T) {
	t.Run("パース不能アーティファクトは未処理のまま計上されるのだ", func(t *testing.T) {
		dir := t.TempDir()
		arts := artifact.NewStore(dir)
		writeBroken(t, dir, "carousels-1700000006.json")

		pr := newTestPublisher(arts, &fakeStore{}, &fakeUploader{}, 500)
		sum, err := pr.PublishPending(context.Background())
		if err != nil {
			t.Fatalf("一覧取得は成功するはずなのだ: %v", err)
		}
		if sum.ArtifactsFailed != 1 || sum.ErrorCount != 1 {
			t.Errorf("集計が違うのだ: %+v", sum)
		}

		pending, _ := arts.ListPending()
		if len(pending) != 1 {
			t.Error("調査用に未処理のまま残っているはずなのだ")
		}
	})
}

func writeBroken(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("壊れファイルの準備に失敗したのだ: %v", err)
	}
}
